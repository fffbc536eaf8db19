// Package token implements the stateless signed-token codec. Revocation
// is layered on top by the session service; the codec only knows about
// signatures, expiry and token kind.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/logger"
)

type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims carried by every issued token. Subject holds the user id,
// ID the jti consulted against the blacklist.
type Claims struct {
	Email domain.Email `json:"email"`
	Kind  Kind         `json:"kind"`
	jwt.RegisteredClaims
}

type CodecService interface {
	Issue(user *domain.User, kind Kind, ttl time.Duration) (string, error)
	Decode(tokenStr string) (*Claims, error)
}

type Codec struct {
	secretKey string
}

func New(secretKey string) CodecService {
	return &Codec{secretKey}
}

// Issue signs a token for user with the given kind and ttl. A token
// expires the instant now >= exp; there is no leeway.
func (c *Codec) Issue(user *domain.User, kind Kind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(c.secretKey))
	if err != nil {
		logger.Log.Error("failed to sign token", "error", err)
		return "", errs.ErrInvalidToken
	}
	return tokenString, nil
}

// Decode verifies signature and expiry and returns the claims.
// Expired tokens surface errs.ErrExpiredToken, everything else that
// fails verification surfaces errs.ErrInvalidToken.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(c.secretKey), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errs.ErrExpiredToken
		}
		logger.Log.Debug("token verification failed", "error", err)
		return nil, errs.ErrInvalidToken
	}
	if !token.Valid {
		return nil, errs.ErrInvalidToken
	}
	if claims.Kind != KindAccess && claims.Kind != KindRefresh {
		return nil, errs.ErrInvalidToken
	}
	return claims, nil
}

// UserId extracts the subject as a user id.
func (cl *Claims) UserId() (domain.UserId, error) {
	id, err := uuid.Parse(cl.Subject)
	if err != nil {
		return uuid.Nil, errs.ErrInvalidToken
	}
	return id, nil
}
