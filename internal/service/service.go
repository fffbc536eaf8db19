// Package service implements the token lifecycle and credential
// verification operations. All durable state lives behind the Storage
// and TokenBlacklist interfaces; the services themselves hold no
// mutable in-process state and are safe for concurrent use.
package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/authkit-dev/authkit/internal/config"
	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/password"
	"github.com/authkit-dev/authkit/internal/token"
)

// Storage is the credential store adapter. Implementations report
// missing rows with errs.ErrNotFound and transient failures with
// errs.StoreUnavailableError. Consume operations are atomic: under
// concurrent calls for the same code/token exactly one succeeds, the
// rest observe errs.ErrNotFound.
type Storage interface {
	SaveUser(ctx context.Context, user domain.User) error
	UserByEmail(ctx context.Context, email domain.Email) (domain.User, error)
	UserById(ctx context.Context, id domain.UserId) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error
	// UpdatePassword replaces the hash and moves the refresh-token
	// fence in a single atomic statement.
	UpdatePassword(ctx context.Context, id domain.UserId, newHash string, refreshInvalidBefore time.Time) error
	MarkUserVerified(ctx context.Context, id domain.UserId) error
	DeleteUser(ctx context.Context, id domain.UserId) error

	SaveVerificationCode(ctx context.Context, code domain.VerificationCode) error
	VerificationCode(ctx context.Context, code string) (domain.VerificationCode, error)
	ConsumeVerificationCode(ctx context.Context, code string) error

	SaveResetToken(ctx context.Context, tok domain.ResetToken) error
	ConsumeResetToken(ctx context.Context, tok string) (domain.UserId, error)
}

// TokenBlacklist is the revocation set consulted on every decode.
// Insertion is idempotent; lookups must observe prior insertions
// (linearizable per token id).
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, tokenId string, at time.Time) error
	IsTokenBlacklisted(ctx context.Context, tokenId string) (bool, error)
	PurgeBlacklist(ctx context.Context, olderThan time.Time) (int64, error)
}

// Sender delivers verification codes and reset tokens out-of-band.
// Delivery failures are logged and swallowed by the services.
type Sender interface {
	Send(recipientEmail, subject, body string) error
}

// DerivedDataStore is the optional cascade hook invoked on account
// deletion when the caller explicitly requests it.
type DerivedDataStore interface {
	DeleteUserData(ctx context.Context, id domain.UserId) error
}

type Auth struct {
	storage   Storage
	blacklist TokenBlacklist
	sender    Sender
	codec     token.CodecService
	hasher    password.Hasher
	derived   DerivedDataStore
	cfg       *config.Public
	validate  *validator.Validate
}

func NewAuth(
	storage Storage,
	blacklist TokenBlacklist,
	sender Sender,
	codec token.CodecService,
	hasher password.Hasher,
	derived DerivedDataStore,
	cfg *config.Public,
) *Auth {
	return &Auth{
		storage:   storage,
		blacklist: blacklist,
		sender:    sender,
		codec:     codec,
		hasher:    hasher,
		derived:   derived,
		cfg:       cfg,
		validate:  validator.New(),
	}
}
