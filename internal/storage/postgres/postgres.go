// Package postgres implements storage.UnitOfWork on database/sql.
//
// Stores pick up the transaction placed in the context by RunInTx, so the
// same store values serve both transactional and standalone calls.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"donorlink/internal/storage"
	dErrors "donorlink/pkg/domain-errors"
	"donorlink/pkg/platform/sentinel"
	txcontext "donorlink/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

const uniqueViolation = "23505"

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type conn struct {
	db *sql.DB
}

func (c conn) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return c.db
}

// DB is the Postgres unit of work.
type DB struct {
	db      *sql.DB
	timeout time.Duration
	stores  storage.Stores
}

type Option func(*DB)

// WithTxTimeout bounds transactions whose context has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(db *DB) {
		db.timeout = d
	}
}

func New(db *sql.DB, opts ...Option) *DB {
	c := conn{db: db}
	u := &DB{
		db:      db,
		timeout: defaultTxTimeout,
		stores: storage.Stores{
			Donors:        &DonorStore{conn: c},
			Throttles:     &ThrottleStore{conn: c},
			Requests:      &RequestStore{conn: c},
			Notifications: &NotificationStore{conn: c},
			Donations:     &DonationStore{conn: c},
			Subscriptions: &SubscriptionStore{conn: c},
		},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *DB) Stores() storage.Stores {
	return u.stores
}

// RunInTx runs fn inside one database transaction. A nested call joins the
// transaction already in ctx.
func (u *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, s storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx, u.stores)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), u.stores); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching value as a literal substring.
func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func inTx(ctx context.Context) bool {
	_, ok := txcontext.From(ctx)
	return ok
}
