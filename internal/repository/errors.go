package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEmail is returned when a user email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrNotVisible is returned when an idea exists but lies outside the scope a
// write was restricted to.
var ErrNotVisible = errors.New("idea outside caller scope")

// DB is the part of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgInvalidTextRepresent = "22P02"
)

// normalizeErr folds malformed identifiers and dangling references into
// pgx.ErrNoRows so lookups by a garbage id behave like lookups by an unknown one.
func normalizeErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidTextRepresent, pgForeignKeyViolation:
			return pgx.ErrNoRows
		case pgUniqueViolation:
			if pgErr.ConstraintName == "users_email_key" {
				return ErrDuplicateEmail
			}
		}
	}
	return err
}
