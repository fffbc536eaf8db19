// Package password wraps bcrypt hashing behind the policy interface the
// services depend on.
package password

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/authkit-dev/authkit/internal/logger"
)

type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

type BcryptHasher struct {
	cost int
}

func New() *BcryptHasher {
	return &BcryptHasher{cost: bcrypt.DefaultCost}
}

func NewWithCost(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		logger.Log.Error("failed to hash password", "error", err)
		return "", err
	}
	return string(hash), nil
}

// Verify never returns an error: any mismatch or malformed hash is
// simply false. bcrypt's comparison is constant-time.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
