package setup

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/authkit-dev/authkit/internal/config"
	"github.com/authkit-dev/authkit/internal/delivery/email"
	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/password"
	"github.com/authkit-dev/authkit/internal/service"
	"github.com/authkit-dev/authkit/internal/storage/pg"
	"github.com/authkit-dev/authkit/internal/storage/redisbl"
	"github.com/authkit-dev/authkit/internal/token"
)

// Dependencies holds all initialized collaborators.
type Dependencies struct {
	Storage *pg.Storage
	Auth    *service.Auth
	GC      *service.BlacklistGarbageCollector
}

// SetupDependencies wires the subsystem together. The token blacklist
// lives in Redis when an address is configured and in Postgres
// otherwise; everything else always lives in Postgres.
func SetupDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var blacklist service.TokenBlacklist = storage
	if cfg.Public.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Public.Redis.Addr,
			Password: cfg.Private.RedisPassword,
			DB:       cfg.Public.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			storage.Cleanup()
			return nil, err
		}
		blacklist = redisbl.New(client, cfg.Public.BlacklistRetention)
		logger.Log.Info("token blacklist backed by redis", "addr", cfg.Public.Redis.Addr)
	}

	sender := email.New(&cfg.Public.Smtp, cfg.Private.SmtpUsername, cfg.Private.SmtpPassword)
	codec := token.New(cfg.JwtKey())
	hasher := password.New()

	auth := service.NewAuth(storage, blacklist, sender, codec, hasher, nil, &cfg.Public)
	gc := service.NewBlacklistGarbageCollector(blacklist, cfg.Public.BlacklistRetention)

	return &Dependencies{
		Storage: storage,
		Auth:    auth,
		GC:      gc,
	}, nil
}
