package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jmanzanog/instrument-registry/internal/domain"
	"github.com/jmanzanog/instrument-registry/internal/infrastructure/persistence/sqldb/migrations"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) Migrate(ctx context.Context, db *sql.DB) error {
	// Goose does not support Oracle natively in a way that is easy to cross-compile with go-ora.
	// Scripts are executed in file name order instead.
	files, err := fs.Glob(migrations.OracleFS, "oracle/*.sql")
	if err != nil {
		return fmt.Errorf("listing migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.OracleFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("reading migration file %s: %w", file, err)
		}
		if err := execOracleScript(ctx, db, string(content)); err != nil {
			return fmt.Errorf("migrating %s: %w", file, err)
		}
	}
	return nil
}

// execOracleScript runs each '/'-terminated statement of script.
func execOracleScript(ctx context.Context, db *sql.DB, script string) error {
	for _, stmt := range strings.Split(script, "\n/") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := db.ExecContext(ctx, stmt); err != nil {
			// ORA-00955: name is already used by an existing object
			if !strings.Contains(err.Error(), "ORA-00955") {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
	}
	return nil
}

func (d *OracleDialect) Rebind(query string) string { return rebindNumbered(query, ":") }

func (d *OracleDialect) BindArg(v any) any {
	if date, ok := v.(domain.Date); ok {
		return date.Time
	}
	return v
}

func (d *OracleDialect) InsertReturningID(ctx context.Context, db *sql.DB, query, idColumn string, args []any) (int64, error) {
	var id int64
	placeholder := ":" + strconv.Itoa(len(args)+1)
	bound := append(append([]any{}, args...), sql.Out{Dest: &id})
	if _, err := db.ExecContext(ctx, query+" RETURNING "+idColumn+" INTO "+placeholder, bound...); err != nil {
		return 0, err
	}
	return id, nil
}

// IsUniqueViolation matches ORA-00001: unique constraint violated.
func (d *OracleDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "ORA-00001")
}
