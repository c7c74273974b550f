package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Dialect isolates everything that differs between the supported engines.
type Dialect interface {
	Name() string
	Migrate(ctx context.Context, db *sql.DB) error
	// Rebind rewrites '?' placeholders into the engine's native form.
	Rebind(query string) string
	// BindArg converts a statement argument into a value the driver accepts.
	BindArg(v any) any
	InsertReturningID(ctx context.Context, db *sql.DB, query, idColumn string, args []any) (int64, error)
	IsUniqueViolation(err error) bool
}

// rebindNumbered replaces each '?' outside string literals with prefix+N.
func rebindNumbered(query, prefix string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "%s%d", prefix, n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// gooseLogger routes migration progress through slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}

func (gooseLogger) Fatalf(format string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrations")
}
