package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
)

// =========================================================================
// Verification codes
// =========================================================================

// SaveVerificationCode upserts the code for its user. The unique
// constraint on user_id keeps at most one active code per account;
// re-requesting replaces the previous one.
func (s *Storage) SaveVerificationCode(ctx context.Context, code domain.VerificationCode) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_codes (code, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		code.Code, code.UserId, code.Expires)
	if err != nil {
		return wrapErr("save verification code", err)
	}
	return nil
}

// VerificationCode is a non-consuming lookup used to check the bound
// user before the code is spent.
func (s *Storage) VerificationCode(ctx context.Context, code string) (domain.VerificationCode, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var vc domain.VerificationCode
	err := s.db.QueryRowContext(ctx,
		`SELECT code, user_id, expires_at FROM verification_codes WHERE code = $1`, code).
		Scan(&vc.Code, &vc.UserId, &vc.Expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.VerificationCode{}, errs.ErrNotFound
		}
		return domain.VerificationCode{}, wrapErr("query verification code", err)
	}
	return vc, nil
}

// ConsumeVerificationCode deletes the code in a single statement.
// Exactly one of any number of concurrent consumers observes success;
// the rest get errs.ErrNotFound.
func (s *Storage) ConsumeVerificationCode(ctx context.Context, code string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE code = $1`, code)
	if err != nil {
		return wrapErr("consume verification code", err)
	}
	return requireAffected(result, "consume verification code")
}

// =========================================================================
// Reset tokens
// =========================================================================

func (s *Storage) SaveResetToken(ctx context.Context, tok domain.ResetToken) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reset_tokens (token, user_id, expires_at)
		VALUES ($1, $2, $3)`,
		tok.Token, tok.UserId, tok.Expires)
	if err != nil {
		return wrapErr("save reset token", err)
	}
	return nil
}

// ConsumeResetToken atomically deletes an unexpired token and returns
// the bound user id. Expired, consumed and unknown tokens are all
// errs.ErrNotFound.
func (s *Storage) ConsumeResetToken(ctx context.Context, tok string) (domain.UserId, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var userId domain.UserId
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM reset_tokens
		WHERE token = $1 AND expires_at > (NOW() AT TIME ZONE 'utc')
		RETURNING user_id`, tok).
		Scan(&userId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserId{}, errs.ErrNotFound
		}
		return domain.UserId{}, wrapErr("consume reset token", err)
	}
	return userId, nil
}
