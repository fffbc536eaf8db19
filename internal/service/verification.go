package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/metrics"
)

// Register creates an unverified account and sends a verification code.
// When verification is disabled by configuration the account is created
// already verified and no code is issued.
func (a *Auth) Register(ctx context.Context, creds domain.Credentials) (user domain.User, err error) {
	defer func() { metrics.Operation("register", err) }()

	if err = a.validate.Struct(creds); err != nil {
		return domain.User{}, errs.ErrInvalidCredentials
	}
	email := strings.ToLower(creds.Email)

	passHash, err := a.hasher.Hash(creds.Password)
	if err != nil {
		return domain.User{}, err
	}

	user = domain.User{
		Id:         uuid.New(),
		Email:      email,
		PassHash:   passHash,
		IsVerified: !a.cfg.RequireEmailVerification,
	}
	if err = a.storage.SaveUser(ctx, user); err != nil {
		return domain.User{}, err
	}

	if a.cfg.RequireEmailVerification {
		if err = a.issueVerificationCode(ctx, &user); err != nil {
			return domain.User{}, err
		}
	}
	return user, nil
}

// RequestVerification re-issues a verification code for an unverified
// account. Unknown or already-verified emails succeed silently so the
// endpoint cannot be used to probe for accounts.
func (a *Auth) RequestVerification(ctx context.Context, email domain.Email) (err error) {
	defer func() { metrics.Operation("request_verification", err) }()

	if !a.cfg.RequireEmailVerification {
		return errs.ErrFeatureDisabled
	}
	if err = a.validate.Var(email, "required,email"); err != nil {
		return errs.ErrInvalidCredentials
	}
	email = strings.ToLower(email)

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if errs.IsNotFound(err) {
			logger.Log.Debug("verification requested for unknown email")
			return nil
		}
		return err
	}
	if user.IsVerified {
		logger.Log.Debug("verification requested for verified account", "user_id", user.Id)
		return nil
	}

	return a.issueVerificationCode(ctx, &user)
}

// ConfirmEmail consumes a verification code and marks the bound user
// verified. The code must resolve to a user whose email matches the
// supplied one; a consumed, expired, unknown or mismatched code all
// surface the same failure. Consumption is atomic, so concurrent
// confirmations of one code produce exactly one success.
func (a *Auth) ConfirmEmail(ctx context.Context, email domain.Email, code string) (err error) {
	defer func() { metrics.Operation("confirm_email", err) }()

	if !a.cfg.RequireEmailVerification {
		return errs.ErrFeatureDisabled
	}
	email = strings.ToLower(email)

	vc, err := a.storage.VerificationCode(ctx, code)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.ErrInvalidOrExpiredCode
		}
		return err
	}
	if time.Now().After(vc.Expires) || time.Now().Equal(vc.Expires) {
		return errs.ErrInvalidOrExpiredCode
	}

	user, err := a.storage.UserById(ctx, vc.UserId)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.ErrInvalidOrExpiredCode
		}
		return err
	}
	// Defends against code/email mismatch even when the lookup succeeded.
	if user.Email != email {
		return errs.ErrInvalidOrExpiredCode
	}

	if err = a.storage.ConsumeVerificationCode(ctx, code); err != nil {
		if errs.IsNotFound(err) {
			// lost the race to a concurrent confirmation
			return errs.ErrInvalidOrExpiredCode
		}
		return err
	}

	if err = a.storage.MarkUserVerified(ctx, user.Id); err != nil {
		return err
	}
	logger.Log.Info("user verified", "user_id", user.Id)
	return nil
}

// issueVerificationCode generates, persists and mails a fresh code.
// Persisting replaces any previous code for the user, keeping at most
// one active code per account. Delivery is fire-and-forget.
func (a *Auth) issueVerificationCode(ctx context.Context, user *domain.User) error {
	code, err := generateCode(a.cfg.VerificationCodeLen)
	if err != nil {
		return err
	}

	vc := domain.VerificationCode{
		Code:    code,
		UserId:  user.Id,
		Expires: time.Now().UTC().Add(a.cfg.VerificationCodeTTL),
	}
	if err := a.storage.SaveVerificationCode(ctx, vc); err != nil {
		return err
	}

	body := fmt.Sprintf(`
		Hello,

		Your verification code below

		%s

		If you did not request this, please ignore this email.
	`, code)

	if err := a.sender.Send(user.Email, "Please confirm your email address", body); err != nil {
		logger.Log.Warn("failed to deliver verification code", "user_id", user.Id, "error", err)
	}
	return nil
}

// generateCode produces n cryptographically random decimal digits.
func generateCode(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + d.Int64()))
	}
	return sb.String(), nil
}
