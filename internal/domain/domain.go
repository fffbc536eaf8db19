// Package domain holds the data model shared between services and storage.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	UserId = uuid.UUID
	Email  = string
)

// User is the persisted account record. IsVerified only ever moves
// false -> true. RefreshInvalidBefore fences refresh tokens minted
// before the last password change.
type User struct {
	Id                   UserId
	Email                Email
	PassHash             string
	IsVerified           bool
	IsSuperuser          bool
	Name                 string
	Bio                  string
	ProfilePicture       string
	RefreshInvalidBefore time.Time
	CreatedAt            time.Time
}

type Credentials struct {
	Email    Email  `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
}

// UserPatch carries a partial profile update. Nil fields are left
// untouched; a non-nil pointer to the zero value clears the field.
type UserPatch struct {
	Email          *Email `validate:"omitempty,email"`
	Name           *string
	Bio            *string
	ProfilePicture *string
}

// VerificationCode proves email ownership. Single use, at most one
// active code per user.
type VerificationCode struct {
	Code    string
	UserId  UserId
	Expires time.Time
}

// ResetToken authorizes a password change without the old password.
type ResetToken struct {
	Token   string
	UserId  UserId
	Expires time.Time
}

// BlacklistEntry records a revoked token id until the garbage collector
// sweeps it.
type BlacklistEntry struct {
	TokenId       string
	BlacklistedAt time.Time
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
