package pg

import (
	"context"
	"time"
)

// BlacklistToken records a revoked token id. The insert is idempotent:
// revoking an already-revoked token is not an error.
func (s *Storage) BlacklistToken(ctx context.Context, tokenId string, at time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_blacklist (token_id, blacklisted_at)
		VALUES ($1, $2)
		ON CONFLICT (token_id) DO NOTHING`,
		tokenId, at.UTC())
	if err != nil {
		return wrapErr("blacklist token", err)
	}
	return nil
}

func (s *Storage) IsTokenBlacklisted(ctx context.Context, tokenId string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM token_blacklist WHERE token_id = $1)`, tokenId).
		Scan(&revoked)
	if err != nil {
		return false, wrapErr("lookup blacklist", err)
	}
	return revoked, nil
}

// PurgeBlacklist deletes entries revoked before olderThan and reports
// how many rows went away. Each deletion is row-atomic, so a cancelled
// sweep leaves a valid, partially swept blacklist.
func (s *Storage) PurgeBlacklist(ctx context.Context, olderThan time.Time) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM token_blacklist WHERE blacklisted_at < $1`, olderThan.UTC())
	if err != nil {
		return 0, wrapErr("purge blacklist", err)
	}
	purged, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr("purge blacklist", err)
	}
	return purged, nil
}
