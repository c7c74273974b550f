package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmanzanog/instrument-registry/internal/domain"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/sqldb/migrations"
	"github.com/pressly/goose/v3"
)

// pgUniqueViolation is SQLSTATE unique_violation.
const pgUniqueViolation = "23505"

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.PostgresFS)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "postgres"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (d *PostgresDialect) Rebind(query string) string { return rebindNumbered(query, "$") }

func (d *PostgresDialect) BindArg(v any) any {
	if date, ok := v.(domain.Date); ok {
		return date.String()
	}
	return v
}

func (d *PostgresDialect) InsertReturningID(ctx context.Context, db *sql.DB, query, idColumn string, args []any) (int64, error) {
	var id int64
	if err := db.QueryRowContext(ctx, query+" RETURNING "+idColumn, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (d *PostgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
