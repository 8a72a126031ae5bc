package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/herdstream/internal/repository"
)

const uniqueViolation = "23505"

// mapWriteErr turns a unique-constraint failure into repository.ErrConflict
// so handlers can answer 409 without knowing about Postgres.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrConflict
	}
	return err
}

// row is satisfied by both pgx.Row and pgx.Rows.
type row interface {
	Scan(dest ...any) error
}
