// Package errs defines the failure kinds returned by the auth subsystem.
// Every operation resolves to one of these sentinels (or a wrapped store
// failure); callers branch on them with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the store-level contract: adapters report missing
	// rows with it instead of nil values. Services translate it into a
	// caller-facing kind before returning.
	ErrNotFound = errors.New("not found")

	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidToken          = errors.New("invalid token")
	ErrExpiredToken          = errors.New("token expired")
	ErrRevokedToken          = errors.New("token revoked")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired verification code")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrUserNotFound          = errors.New("user not found")
	ErrFeatureDisabled       = errors.New("email verification is not required")
	ErrUnauthenticated       = errors.New("invalid authentication credentials")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrEmailTaken            = errors.New("email already registered")
)

// StoreUnavailableError marks a transient store failure (timeout,
// connection loss). It is the only retryable kind. The cause is kept
// for logging and never shown to end users.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s", e.Op)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// StoreUnavailable wraps err as a transient store failure for op.
func StoreUnavailable(op string, err error) error {
	return &StoreUnavailableError{Op: op, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsStoreUnavailable(err error) bool {
	var e *StoreUnavailableError
	return errors.As(err, &e)
}
