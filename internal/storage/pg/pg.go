// Package pg implements the credential store on PostgreSQL.
//
// Missing rows are reported as errs.ErrNotFound, transient driver and
// timeout failures as errs.StoreUnavailableError. Consume operations
// are single DELETE statements, so row-level atomicity guarantees that
// concurrent consumers see exactly one success.
package pg

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/authkit-dev/authkit/internal/config"
	"github.com/authkit-dev/authkit/internal/errs"
	"github.com/authkit-dev/authkit/internal/logger"
	"github.com/authkit-dev/authkit/internal/storage/pg/migrations"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so core methods can
// run inside or outside a transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type Storage struct {
	db      *sql.DB
	timeout time.Duration
}

func New(ctx context.Context, cfg *config.Config) (*Storage, error) {
	logger.Log.Info("connecting to db", "host", cfg.Public.Pg.Host, "dbname", cfg.Public.Pg.Dbname)
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}

	storage := &Storage{db: db, timeout: cfg.Public.StoreTimeout}
	if err := storage.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Log.Info("successfully connected to db")
	return storage, nil
}

func Connect(cfg *config.Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Public.Pg.Host, cfg.Public.Pg.Port, cfg.Public.Pg.User, cfg.Private.PgPassword, cfg.Public.Pg.Dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func (s *Storage) runMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *Storage) Cleanup() error {
	return s.db.Close()
}

// opCtx derives a bounded context for a single store call. The caller
// may pass an even tighter deadline; the shorter one wins.
func (s *Storage) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin tx", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapErr("commit tx", err)
	}
	return nil
}

// wrapErr translates driver-level failures into the store contract.
// Timeouts and connection loss become retryable StoreUnavailable
// failures; unique violations on the users email become ErrEmailTaken.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) {
		return errs.StoreUnavailable(op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.StoreUnavailable(op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Name() == "unique_violation" && strings.Contains(pqErr.Constraint, "users_email") {
			return errs.ErrEmailTaken
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
