package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/authkit-dev/authkit/internal/domain"
	"github.com/authkit-dev/authkit/internal/errs"
)

// =========================================================================
// Public Methods (satisfy the service.Storage interface)
// =========================================================================

// SaveUser inserts a new user record. A duplicate email surfaces
// errs.ErrEmailTaken via the unique constraint.
func (s *Storage) SaveUser(ctx context.Context, user domain.User) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.saveUser(tx, user)
	})
}

func (s *Storage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.scanUser(s.db.QueryRowContext(ctx, selectUser+" WHERE email = $1", email))
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.scanUser(s.db.QueryRowContext(ctx, selectUser+" WHERE id = $1", id))
}

// UpdateUser replaces the profile columns of an existing user.
func (s *Storage) UpdateUser(ctx context.Context, user domain.User) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateUser(tx, user)
	})
}

// UpdatePassword replaces the hash and moves the refresh-token fence in
// one statement, so a crash can never leave a new password accepting
// old refresh tokens.
func (s *Storage) UpdatePassword(ctx context.Context, id domain.UserId, newHash string, refreshInvalidBefore time.Time) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updatePassword(tx, id, newHash, refreshInvalidBefore)
	})
}

// MarkUserVerified flips the verification flag. The flag only ever
// moves false -> true; there is no reverse operation.
func (s *Storage) MarkUserVerified(ctx context.Context, id domain.UserId) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.markUserVerified(tx, id)
	})
}

// DeleteUser removes the user row; verification codes and reset tokens
// follow via ON DELETE CASCADE.
func (s *Storage) DeleteUser(ctx context.Context, id domain.UserId) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.deleteUser(tx, id)
	})
}

// =========================================================================
// Internal Methods (Core Database Logic)
// =========================================================================

const selectUser = `SELECT id, email, password_hash, is_verified, is_superuser, name, bio, profile_picture, refresh_invalid_before, created_at FROM users`

func (s *Storage) scanUser(row *sql.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.Id, &user.Email, &user.PassHash, &user.IsVerified, &user.IsSuperuser,
		&user.Name, &user.Bio, &user.ProfilePicture, &user.RefreshInvalidBefore, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, errs.ErrNotFound
		}
		return domain.User{}, wrapErr("query user", err)
	}
	return user, nil
}

func (s *Storage) saveUser(q Querier, user domain.User) error {
	_, err := q.Exec(`INSERT INTO users(id, email, password_hash, is_verified, is_superuser, name, bio, profile_picture)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.Id, user.Email, user.PassHash, user.IsVerified, user.IsSuperuser,
		user.Name, user.Bio, user.ProfilePicture)
	if err != nil {
		return wrapErr("insert user", err)
	}
	return nil
}

func (s *Storage) updateUser(q Querier, user domain.User) error {
	result, err := q.Exec(`UPDATE users SET email = $2, name = $3, bio = $4, profile_picture = $5 WHERE id = $1`,
		user.Id, user.Email, user.Name, user.Bio, user.ProfilePicture)
	if err != nil {
		return wrapErr("update user", err)
	}
	return requireAffected(result, "update user")
}

func (s *Storage) updatePassword(q Querier, id domain.UserId, newHash string, refreshInvalidBefore time.Time) error {
	result, err := q.Exec(`UPDATE users SET password_hash = $2, refresh_invalid_before = $3 WHERE id = $1`,
		id, newHash, refreshInvalidBefore)
	if err != nil {
		return wrapErr("update password", err)
	}
	return requireAffected(result, "update password")
}

func (s *Storage) markUserVerified(q Querier, id domain.UserId) error {
	result, err := q.Exec(`UPDATE users SET is_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return wrapErr("mark user verified", err)
	}
	return requireAffected(result, "mark user verified")
}

func (s *Storage) deleteUser(q Querier, id domain.UserId) error {
	result, err := q.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete user", err)
	}
	return requireAffected(result, "delete user")
}

// requireAffected maps "zero rows touched" onto the NotFound contract.
func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr(op, err)
	}
	if affected == 0 {
		return errs.ErrNotFound
	}
	return nil
}
