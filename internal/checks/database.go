package checks

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DatabaseBackend creates, updates and deletes a probe row.
type DatabaseBackend struct {
	base
	db querier
}

// NewDatabaseBackend creates a database check.
func NewDatabaseBackend(db querier) *DatabaseBackend {
	return &DatabaseBackend{
		base: base{name: "Database", slug: "database", critical: true},
		db:   db,
	}
}

// Check implements Backend.
func (b *DatabaseBackend) Check(ctx context.Context) error {
	var id string
	err := b.db.QueryRow(ctx, `INSERT INTO health_check_probes (name) VALUES ($1) RETURNING id`, "test").Scan(&id)
	if err != nil {
		return databaseError(err)
	}

	if _, err := b.db.Exec(ctx, `UPDATE health_check_probes SET name = $2 WHERE id = $1`, id, "new_test"); err != nil {
		return databaseError(err)
	}

	if _, err := b.db.Exec(ctx, `DELETE FROM health_check_probes WHERE id = $1`, id); err != nil {
		return databaseError(err)
	}
	return nil
}

// databaseError classifies integrity constraint violations (SQLSTATE class 23)
// apart from other database failures.
func databaseError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "23") {
		return UnexpectedResult("Integrity Error", err)
	}
	return Unavailable("Database Error", err)
}
