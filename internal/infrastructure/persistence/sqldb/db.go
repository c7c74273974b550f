package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrUniqueViolation wraps engine errors caused by a UNIQUE constraint.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Row is a single result row keyed by lower-cased column name.
type Row map[string]any

// DB is the instrument store: it executes parameterized statements written
// with '?' placeholders and leaves interpretation of rows to its callers.
// Every call runs in the driver's autocommit mode.
type DB struct {
	*sql.DB
	Dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{
		DB:      db,
		Dialect: dialect,
	}
}

// RunQuery executes a SELECT and returns every row. No limit is applied.
func (db *DB) RunQuery(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := db.QueryContext(ctx, db.Dialect.Rebind(query), db.bindArgs(args)...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	for i := range columns {
		columns[i] = strings.ToLower(columns[i])
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

// RunUpdate executes an UPDATE or DELETE and returns the affected row count.
func (db *DB) RunUpdate(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, db.Dialect.Rebind(query), db.bindArgs(args)...)
	if err != nil {
		return 0, db.translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return affected, nil
}

// RunInsert executes an INSERT and returns the identifier the engine
// assigned to idColumn.
func (db *DB) RunInsert(ctx context.Context, query, idColumn string, args ...any) (int64, error) {
	id, err := db.Dialect.InsertReturningID(ctx, db.DB, db.Dialect.Rebind(query), idColumn, db.bindArgs(args))
	if err != nil {
		return 0, db.translateError(err)
	}
	return id, nil
}

func (db *DB) bindArgs(args []any) []any {
	bound := make([]any, len(args))
	for i, arg := range args {
		bound[i] = db.Dialect.BindArg(arg)
	}
	return bound
}

func (db *DB) translateError(err error) error {
	if db.Dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrUniqueViolation, err)
	}
	return fmt.Errorf("executing statement: %w", err)
}
