package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/metrics"
)

// RequestReset issues a password reset token for the account behind
// email. An unknown email succeeds silently with the exact same
// response shape so the endpoint gives no account-enumeration signal.
func (a *Auth) RequestReset(ctx context.Context, email domain.Email) (err error) {
	defer func() { metrics.Operation("request_reset", err) }()

	if err = a.validate.Var(email, "required,email"); err != nil {
		return errs.ErrInvalidCredentials
	}
	email = strings.ToLower(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if errs.IsNotFound(err) {
			logger.Log.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}

	tok := domain.ResetToken{
		Token:   uuid.NewString(),
		UserId:  user.Id,
		Expires: time.Now().UTC().Add(a.cfg.ResetTokenTTL),
	}
	if err = a.storage.SaveResetToken(ctx, tok); err != nil {
		return err
	}

	body := fmt.Sprintf(`
		Hello,

		Use the token below to reset your password

		%s

		If you did not request this, please ignore this email.
	`, tok.Token)

	if err := a.sender.Send(user.Email, "Password reset request", body); err != nil {
		logger.Log.Warn("failed to deliver reset token", "user_id", user.Id, "error", err)
	}
	return nil
}

// ConfirmReset consumes a reset token and replaces the password. The
// consume is a single atomic store operation, so concurrent
// confirmations of the same token produce exactly one success. Every
// outstanding refresh token is fenced out by the password update.
func (a *Auth) ConfirmReset(ctx context.Context, tokenStr, newPassword string) (err error) {
	defer func() { metrics.Operation("confirm_reset", err) }()

	if err = a.validate.Var(newPassword, "required,min=8,max=128"); err != nil {
		return errs.ErrInvalidCredentials
	}

	userId, err := a.storage.ConsumeResetToken(ctx, tokenStr)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.ErrInvalidOrExpiredToken
		}
		return err
	}

	passHash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err = a.storage.UpdatePassword(ctx, userId, passHash, time.Now().UTC()); err != nil {
		return err
	}
	logger.Log.Info("password reset completed", "user_id", userId)
	return nil
}
