package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmanzanog/instrument-registry/internal/domain"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/sqldb/migrations"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// SQLiteDialect targets github.com/mattn/go-sqlite3.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.SQLiteFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "sqlite"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

func (d *SQLiteDialect) Rebind(query string) string { return query }

// BindArg stores dates as ISO-8601 text, matching what the schema defaults
// and the row decoder expect.
func (d *SQLiteDialect) BindArg(v any) any {
	if date, ok := v.(domain.Date); ok {
		return date.String()
	}
	return v
}

func (d *SQLiteDialect) InsertReturningID(ctx context.Context, db *sql.DB, query, _ string, args []any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *SQLiteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
