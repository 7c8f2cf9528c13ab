package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString   = errors.New("pg: empty connection string")
	ErrFailedToParseConfig     = errors.New("pg: failed to parse connection config")
	ErrFailedToConnect         = errors.New("pg: failed to connect")
	ErrHealthcheckFailed       = errors.New("pg: healthcheck failed")
	ErrFailedToApplyMigrations = errors.New("pg: failed to apply migrations")
	ErrMigrationsDirNotFound   = errors.New("pg: migrations directory not found")
)

// IsNotFound reports whether err is pgx's no-rows result.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateKey reports a unique constraint violation (SQLSTATE 23505),
// e.g. attaching the same override twice.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation reports a referential integrity violation
// (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
