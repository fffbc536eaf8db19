package config

import (
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Pg    Pg    `yaml:"pg"`
	Redis Redis `yaml:"redis"`
	Smtp  Smtp  `yaml:"smtp"`

	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`

	RequireEmailVerification bool          `yaml:"require_email_verification"`
	VerificationCodeLen      int           `yaml:"verification_code_len"`
	VerificationCodeTTL      time.Duration `yaml:"verification_code_ttl"`
	ResetTokenTTL            time.Duration `yaml:"reset_token_ttl"`

	BlacklistRetention time.Duration `yaml:"blacklist_retention"`
	GCInterval         time.Duration `yaml:"gc_interval"`
	StoreTimeout       time.Duration `yaml:"store_timeout"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogJSON     bool   `yaml:"log_json"`
}

type Pg struct {
	Host   string `yaml:"host" validate:"required"`
	Port   int    `yaml:"port" validate:"required"`
	User   string `yaml:"user" validate:"required"`
	Dbname string `yaml:"dbname" validate:"required"`
}

// Redis is optional; when Addr is empty the token blacklist lives in
// Postgres alongside the rest of the credential store.
type Redis struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

type Smtp struct {
	Server     string `yaml:"server"`
	Port       int    `yaml:"port"`
	SenderName string `yaml:"sender_name"`
	Timeout    int    `yaml:"timeout"`
}

type Private struct {
	JwtKey        string `yaml:"jwt_key" validate:"required,min=32"`
	PgPassword    string `yaml:"pg_password"`
	RedisPassword string `yaml:"redis_password"`
	SmtpUsername  string `yaml:"smtp_username"`
	SmtpPassword  string `yaml:"smtp_password"`
}

func (c *Config) JwtKey() string {
	return c.Private.JwtKey
}

// setDefaults fills zero values with working defaults. Blacklist
// retention defaults to a full week so entries outlive any refresh token.
func (p *Public) setDefaults() {
	if p.AccessTokenTTL == 0 {
		p.AccessTokenTTL = time.Hour
	}
	if p.RefreshTokenTTL == 0 {
		p.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if p.VerificationCodeLen == 0 {
		p.VerificationCodeLen = 6
	}
	if p.VerificationCodeTTL == 0 {
		p.VerificationCodeTTL = 10 * time.Minute
	}
	if p.ResetTokenTTL == 0 {
		p.ResetTokenTTL = time.Hour
	}
	if p.BlacklistRetention == 0 {
		p.BlacklistRetention = 168 * time.Hour
	}
	if p.GCInterval == 0 {
		p.GCInterval = time.Hour
	}
	if p.StoreTimeout == 0 {
		p.StoreTimeout = 5 * time.Second
	}
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}
}

func mustLoadPath(configPath string, output interface{}) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file")
	}

	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic("can't unmarshal config file")
	}
}

// MustLoad reads public.yaml and private.yaml from configFolder,
// applies defaults and panics on invalid configuration.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	public.setDefaults()

	cfg := &Config{public, private}
	validate := validator.New()
	if err := validate.Struct(&cfg.Public); err != nil {
		panic("invalid public config: " + err.Error())
	}
	if err := validate.Struct(&cfg.Private); err != nil {
		panic("invalid private config: " + err.Error())
	}
	return cfg
}
