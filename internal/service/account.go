package service

import (
	"context"
	"strings"
	"time"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/metrics"
)

// ChangePassword rotates the password after verifying the current one.
// Outstanding refresh tokens are invalidated so every other device has
// to log in again.
func (a *Auth) ChangePassword(ctx context.Context, userId domain.UserId, current, newPassword string) (err error) {
	defer func() { metrics.Operation("change_password", err) }()

	user, err := a.storage.UserById(ctx, userId)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.ErrUserNotFound
		}
		return err
	}

	if !a.hasher.Verify(current, user.PassHash) {
		return errs.ErrIncorrectPassword
	}
	if err = a.validate.Var(newPassword, "required,min=8,max=128"); err != nil {
		return errs.ErrInvalidCredentials
	}

	passHash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return a.storage.UpdatePassword(ctx, userId, passHash, time.Now().UTC())
}

// UpdateProfile applies a partial update. Only fields the caller
// explicitly set (non-nil pointers) are touched.
func (a *Auth) UpdateProfile(ctx context.Context, userId domain.UserId, patch domain.UserPatch) (user domain.User, err error) {
	defer func() { metrics.Operation("update_profile", err) }()

	if err = a.validate.Struct(patch); err != nil {
		return domain.User{}, errs.ErrInvalidCredentials
	}

	user, err = a.storage.UserById(ctx, userId)
	if err != nil {
		if errs.IsNotFound(err) {
			return domain.User{}, errs.ErrUserNotFound
		}
		return domain.User{}, err
	}

	if patch.Email != nil {
		user.Email = strings.ToLower(*patch.Email)
	}
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.ProfilePicture != nil {
		user.ProfilePicture = *patch.ProfilePicture
	}

	if err = a.storage.UpdateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// DeleteAccount removes the user record. Unless force is set (a
// privileged override) the caller must supply the account password.
// Derived data is cascaded only when explicitly requested.
func (a *Auth) DeleteAccount(ctx context.Context, userId domain.UserId, pass *string, force, deleteDerivedData bool) (err error) {
	defer func() { metrics.Operation("delete_account", err) }()

	user, err := a.storage.UserById(ctx, userId)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.ErrUserNotFound
		}
		return err
	}

	if !force {
		if pass == nil || !a.hasher.Verify(*pass, user.PassHash) {
			return errs.ErrIncorrectPassword
		}
	}

	if err = a.storage.DeleteUser(ctx, userId); err != nil {
		return err
	}

	if deleteDerivedData && a.derived != nil {
		if err = a.derived.DeleteUserData(ctx, userId); err != nil {
			return err
		}
	}
	logger.Log.Info("account deleted", "user_id", userId, "forced", force)
	return nil
}
