package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authkit-dev/authkit/internal/config"
	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/password"
	"github.com/authkit-dev/authkit/internal/token"
)

// --- Mocks ---

type MockStorage struct {
	SaveUserFunc                func(user domain.User) error
	UserByEmailFunc             func(email domain.Email) (domain.User, error)
	UserByIdFunc                func(id domain.UserId) (domain.User, error)
	UpdateUserFunc              func(user domain.User) error
	UpdatePasswordFunc          func(id domain.UserId, newHash string, refreshInvalidBefore time.Time) error
	MarkUserVerifiedFunc        func(id domain.UserId) error
	DeleteUserFunc              func(id domain.UserId) error
	SaveVerificationCodeFunc    func(code domain.VerificationCode) error
	VerificationCodeFunc        func(code string) (domain.VerificationCode, error)
	ConsumeVerificationCodeFunc func(code string) error
	SaveResetTokenFunc          func(tok domain.ResetToken) error
	ConsumeResetTokenFunc       func(tok string) (domain.UserId, error)
}

func (m *MockStorage) SaveUser(_ context.Context, user domain.User) error {
	if m.SaveUserFunc != nil {
		return m.SaveUserFunc(user)
	}
	return nil
}

func (m *MockStorage) UserByEmail(_ context.Context, email domain.Email) (domain.User, error) {
	if m.UserByEmailFunc != nil {
		return m.UserByEmailFunc(email)
	}
	// Default: not found
	return domain.User{}, errs.ErrNotFound
}

func (m *MockStorage) UserById(_ context.Context, id domain.UserId) (domain.User, error) {
	if m.UserByIdFunc != nil {
		return m.UserByIdFunc(id)
	}
	return domain.User{}, errs.ErrNotFound
}

func (m *MockStorage) UpdateUser(_ context.Context, user domain.User) error {
	if m.UpdateUserFunc != nil {
		return m.UpdateUserFunc(user)
	}
	return nil
}

func (m *MockStorage) UpdatePassword(_ context.Context, id domain.UserId, newHash string, refreshInvalidBefore time.Time) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(id, newHash, refreshInvalidBefore)
	}
	return nil
}

func (m *MockStorage) MarkUserVerified(_ context.Context, id domain.UserId) error {
	if m.MarkUserVerifiedFunc != nil {
		return m.MarkUserVerifiedFunc(id)
	}
	return nil
}

func (m *MockStorage) DeleteUser(_ context.Context, id domain.UserId) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(id)
	}
	return nil
}

func (m *MockStorage) SaveVerificationCode(_ context.Context, code domain.VerificationCode) error {
	if m.SaveVerificationCodeFunc != nil {
		return m.SaveVerificationCodeFunc(code)
	}
	return nil
}

func (m *MockStorage) VerificationCode(_ context.Context, code string) (domain.VerificationCode, error) {
	if m.VerificationCodeFunc != nil {
		return m.VerificationCodeFunc(code)
	}
	return domain.VerificationCode{}, errs.ErrNotFound
}

func (m *MockStorage) ConsumeVerificationCode(_ context.Context, code string) error {
	if m.ConsumeVerificationCodeFunc != nil {
		return m.ConsumeVerificationCodeFunc(code)
	}
	return nil
}

func (m *MockStorage) SaveResetToken(_ context.Context, tok domain.ResetToken) error {
	if m.SaveResetTokenFunc != nil {
		return m.SaveResetTokenFunc(tok)
	}
	return nil
}

func (m *MockStorage) ConsumeResetToken(_ context.Context, tok string) (domain.UserId, error) {
	if m.ConsumeResetTokenFunc != nil {
		return m.ConsumeResetTokenFunc(tok)
	}
	return domain.UserId{}, errs.ErrNotFound
}

// MockBlacklist defaults to a working in-memory revocation set so
// session tests exercise real rotate/revoke flows.
type MockBlacklist struct {
	BlacklistTokenFunc     func(tokenId string, at time.Time) error
	IsTokenBlacklistedFunc func(tokenId string) (bool, error)
	PurgeBlacklistFunc     func(olderThan time.Time) (int64, error)

	mu      sync.Mutex
	entries map[string]time.Time
}

func (m *MockBlacklist) BlacklistToken(_ context.Context, tokenId string, at time.Time) error {
	if m.BlacklistTokenFunc != nil {
		return m.BlacklistTokenFunc(tokenId, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]time.Time)
	}
	m.entries[tokenId] = at
	return nil
}

func (m *MockBlacklist) IsTokenBlacklisted(_ context.Context, tokenId string) (bool, error) {
	if m.IsTokenBlacklistedFunc != nil {
		return m.IsTokenBlacklistedFunc(tokenId)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[tokenId]
	return ok, nil
}

func (m *MockBlacklist) PurgeBlacklist(_ context.Context, olderThan time.Time) (int64, error) {
	if m.PurgeBlacklistFunc != nil {
		return m.PurgeBlacklistFunc(olderThan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, at := range m.entries {
		if at.Before(olderThan) {
			delete(m.entries, id)
			purged++
		}
	}
	return purged, nil
}

type MockSender struct {
	SendFunc func(recipientEmail, subject, body string) error
}

func (m *MockSender) Send(recipientEmail, subject, body string) error {
	if m.SendFunc != nil {
		return m.SendFunc(recipientEmail, subject, body)
	}
	return nil
}

type MockDerived struct {
	DeleteUserDataFunc func(id domain.UserId) error
	Called             bool
}

func (m *MockDerived) DeleteUserData(_ context.Context, id domain.UserId) error {
	m.Called = true
	if m.DeleteUserDataFunc != nil {
		return m.DeleteUserDataFunc(id)
	}
	return nil
}

// --- Helpers ---

const testSecret = "test-signing-key-for-service-tests-only"

func testConfig() *config.Public {
	return &config.Public{
		AccessTokenTTL:           time.Hour,
		RefreshTokenTTL:          24 * time.Hour,
		RequireEmailVerification: true,
		VerificationCodeLen:      6,
		VerificationCodeTTL:      10 * time.Minute,
		ResetTokenTTL:            time.Hour,
		BlacklistRetention:       168 * time.Hour,
	}
}

func newTestAuth(cfg *config.Public) (*Auth, *MockStorage, *MockBlacklist, *MockSender) {
	storage := &MockStorage{}
	blacklist := &MockBlacklist{}
	sender := &MockSender{}
	auth := NewAuth(storage, blacklist, sender,
		token.New(testSecret), password.NewWithCost(bcrypt.MinCost), nil, cfg)
	return auth, storage, blacklist, sender
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}
