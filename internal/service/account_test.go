package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authkit-dev/authkit/internal/config"
	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/password"
	"github.com/authkit-dev/authkit/internal/token"
)

func ptr[T any](v T) *T { return &v }

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	user := verifiedUser("old-password-1234")

	t.Run("successful change fences refresh tokens", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		updated := false
		storage.UpdatePasswordFunc = func(id domain.UserId, newHash string, refreshInvalidBefore time.Time) error {
			updated = true
			assert.Equal(t, user.Id, id)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password-1234")))
			assert.WithinDuration(t, time.Now().UTC(), refreshInvalidBefore, time.Minute)
			return nil
		}

		require.NoError(t, auth.ChangePassword(ctx, user.Id, "old-password-1234", "new-password-1234"))
		assert.True(t, updated)
	})

	t.Run("wrong current password", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		err := auth.ChangePassword(ctx, user.Id, "not-the-password", "new-password-1234")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrIncorrectPassword))
	})

	t.Run("weak new password", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		err := auth.ChangePassword(ctx, user.Id, "old-password-1234", "short")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
	})

	t.Run("unknown user", func(t *testing.T) {
		auth, _, _, _ := newTestAuth(testConfig())
		// default UserById is not found

		err := auth.ChangePassword(ctx, uuid.New(), "old-password-1234", "new-password-1234")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	existing := domain.User{
		Id:         uuid.New(),
		Email:      "test@example.com",
		Name:       "Old Name",
		Bio:        "old bio",
		IsVerified: true,
	}

	t.Run("partial patch touches only set fields", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return existing, nil }

		var saved domain.User
		storage.UpdateUserFunc = func(user domain.User) error {
			saved = user
			return nil
		}

		updated, err := auth.UpdateProfile(ctx, existing.Id, domain.UserPatch{Name: ptr("New Name")})
		require.NoError(t, err)

		assert.Equal(t, "New Name", saved.Name)
		assert.Equal(t, existing.Email, saved.Email)
		assert.Equal(t, existing.Bio, saved.Bio)
		assert.Equal(t, saved, updated)
	})

	t.Run("empty string clears a field, nil leaves it alone", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return existing, nil }

		var saved domain.User
		storage.UpdateUserFunc = func(user domain.User) error {
			saved = user
			return nil
		}

		_, err := auth.UpdateProfile(ctx, existing.Id, domain.UserPatch{Bio: ptr("")})
		require.NoError(t, err)
		assert.Equal(t, "", saved.Bio)
		assert.Equal(t, existing.Name, saved.Name)
	})

	t.Run("email is lowercased", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return existing, nil }

		var saved domain.User
		storage.UpdateUserFunc = func(user domain.User) error {
			saved = user
			return nil
		}

		_, err := auth.UpdateProfile(ctx, existing.Id, domain.UserPatch{Email: ptr("New@Example.com")})
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", saved.Email)
	})

	t.Run("malformed email", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return existing, nil }

		_, err := auth.UpdateProfile(ctx, existing.Id, domain.UserPatch{Email: ptr("not-an-email")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrInvalidCredentials))
	})

	t.Run("email conflict", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return existing, nil }
		storage.UpdateUserFunc = func(user domain.User) error { return errs.ErrEmailTaken }

		_, err := auth.UpdateProfile(ctx, existing.Id, domain.UserPatch{Email: ptr("taken@example.com")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrEmailTaken))
	})

	t.Run("unknown user", func(t *testing.T) {
		auth, _, _, _ := newTestAuth(testConfig())

		_, err := auth.UpdateProfile(ctx, uuid.New(), domain.UserPatch{Name: ptr("New Name")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	})
}

func TestDeleteAccount(t *testing.T) {
	ctx := context.Background()
	user := verifiedUser("password1234")

	newAuthWithDerived := func(cfg *config.Public) (*Auth, *MockStorage, *MockDerived) {
		storage := &MockStorage{}
		derived := &MockDerived{}
		auth := NewAuth(storage, &MockBlacklist{}, &MockSender{},
			token.New(testSecret), password.NewWithCost(bcrypt.MinCost), derived, cfg)
		return auth, storage, derived
	}

	t.Run("delete with correct password", func(t *testing.T) {
		auth, storage, derived := newAuthWithDerived(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		deleted := false
		storage.DeleteUserFunc = func(id domain.UserId) error {
			deleted = true
			assert.Equal(t, user.Id, id)
			return nil
		}

		require.NoError(t, auth.DeleteAccount(ctx, user.Id, ptr("password1234"), false, false))
		assert.True(t, deleted)
		assert.False(t, derived.Called, "derived data kept unless requested")
	})

	t.Run("wrong password", func(t *testing.T) {
		auth, storage, _ := newAuthWithDerived(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		deleted := false
		storage.DeleteUserFunc = func(id domain.UserId) error {
			deleted = true
			return nil
		}

		err := auth.DeleteAccount(ctx, user.Id, ptr("wrong"), false, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrIncorrectPassword))
		assert.False(t, deleted)
	})

	t.Run("missing password without force", func(t *testing.T) {
		auth, storage, _ := newAuthWithDerived(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		err := auth.DeleteAccount(ctx, user.Id, nil, false, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrIncorrectPassword))
	})

	t.Run("force skips the password check", func(t *testing.T) {
		auth, storage, _ := newAuthWithDerived(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		require.NoError(t, auth.DeleteAccount(ctx, user.Id, nil, true, false))
	})

	t.Run("derived data cascade on request", func(t *testing.T) {
		auth, storage, derived := newAuthWithDerived(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		require.NoError(t, auth.DeleteAccount(ctx, user.Id, ptr("password1234"), false, true))
		assert.True(t, derived.Called)
	})

	t.Run("no derived store configured", func(t *testing.T) {
		auth, storage, _, _ := newTestAuth(testConfig())
		storage.UserByIdFunc = func(id domain.UserId) (domain.User, error) { return user, nil }

		// cascade requested but no derived store wired in
		require.NoError(t, auth.DeleteAccount(ctx, user.Id, ptr("password1234"), false, true))
	})

	t.Run("unknown user", func(t *testing.T) {
		auth, _, _ := newAuthWithDerived(testConfig())

		err := auth.DeleteAccount(ctx, uuid.New(), ptr("password1234"), false, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrUserNotFound))
	})
}
