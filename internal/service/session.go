package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/metrics"
	"github.com/authkit-dev/authkit/internal/token"
)

// Login checks credentials and returns a fresh access/refresh pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (a *Auth) Login(ctx context.Context, creds domain.Credentials) (pair domain.TokenPair, err error) {
	defer func() { metrics.Operation("login", err) }()

	if err = a.validate.Struct(creds); err != nil {
		return domain.TokenPair{}, errs.ErrInvalidCredentials
	}
	email := strings.ToLower(creds.Email)

	user, err := a.storage.UserByEmail(ctx, email)
	if err != nil {
		if errs.IsNotFound(err) {
			// to not leak existing users
			return domain.TokenPair{}, errs.ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	if !a.hasher.Verify(creds.Password, user.PassHash) {
		logger.Log.Debug("password verification failed", "user_id", user.Id)
		return domain.TokenPair{}, errs.ErrInvalidCredentials
	}

	if a.cfg.RequireEmailVerification && !user.IsVerified {
		return domain.TokenPair{}, errs.ErrEmailNotVerified
	}

	return a.issuePair(&user)
}

// Refresh exchanges a live refresh token for a new pair. The consumed
// token is rotated out: its id is blacklisted before the new pair is
// returned, so replaying it yields ErrRevokedToken.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (pair domain.TokenPair, err error) {
	defer func() { metrics.Operation("refresh", err) }()

	claims, err := a.decodeLive(ctx, refreshToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if claims.Kind != token.KindRefresh {
		return domain.TokenPair{}, errs.ErrInvalidToken
	}

	userId, err := claims.UserId()
	if err != nil {
		return domain.TokenPair{}, err
	}
	user, err := a.storage.UserById(ctx, userId)
	if err != nil {
		if errs.IsNotFound(err) {
			return domain.TokenPair{}, errs.ErrUnauthenticated
		}
		return domain.TokenPair{}, err
	}

	// Password change fences out every refresh token minted before it.
	if claims.IssuedAt != nil && claims.IssuedAt.Time.Before(user.RefreshInvalidBefore) {
		return domain.TokenPair{}, errs.ErrRevokedToken
	}

	if err = a.blacklist.BlacklistToken(ctx, claims.ID, time.Now()); err != nil {
		return domain.TokenPair{}, err
	}

	return a.issuePair(&user)
}

// Logout revokes the given token. Logging out an already-revoked or
// already-expired token is not an error.
func (a *Auth) Logout(ctx context.Context, tokenStr string) (err error) {
	defer func() { metrics.Operation("logout", err) }()

	claims, err := a.codec.Decode(tokenStr)
	if err != nil {
		if errors.Is(err, errs.ErrExpiredToken) {
			// nothing left to revoke
			return nil
		}
		return err
	}

	return a.blacklist.BlacklistToken(ctx, claims.ID, time.Now())
}

// CurrentUser resolves a live access token to its user record.
func (a *Auth) CurrentUser(ctx context.Context, accessToken string) (user domain.User, err error) {
	defer func() { metrics.Operation("current_user", err) }()

	claims, err := a.decodeLive(ctx, accessToken)
	if err != nil {
		return domain.User{}, err
	}
	if claims.Kind != token.KindAccess {
		return domain.User{}, errs.ErrInvalidToken
	}

	userId, err := claims.UserId()
	if err != nil {
		return domain.User{}, err
	}
	user, err = a.storage.UserById(ctx, userId)
	if err != nil {
		if errs.IsNotFound(err) {
			return domain.User{}, errs.ErrUnauthenticated
		}
		return domain.User{}, err
	}
	return user, nil
}

// decodeLive verifies signature and expiry, then checks the blacklist.
// A blacklisted id fails with ErrRevokedToken regardless of remaining ttl.
func (a *Auth) decodeLive(ctx context.Context, tokenStr string) (*token.Claims, error) {
	claims, err := a.codec.Decode(tokenStr)
	if err != nil {
		return nil, err
	}

	revoked, err := a.blacklist.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errs.ErrRevokedToken
	}
	return claims, nil
}

func (a *Auth) issuePair(user *domain.User) (domain.TokenPair, error) {
	access, err := a.codec.Issue(user, token.KindAccess, a.cfg.AccessTokenTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := a.codec.Issue(user, token.KindRefresh, a.cfg.RefreshTokenTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
