package db

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ensureLogPrefix = "db:ensure"

// maxIdentifierLen is the Postgres NAMEDATALEN limit minus the terminator.
const maxIdentifierLen = 63

// safeIdent matches unquoted Postgres identifiers this package will create.
var safeIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier checks name is a plain identifier of acceptable length.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("identifier %q is longer than %d characters", name, maxIdentifierLen)
	}
	if !safeIdent.MatchString(name) {
		return fmt.Errorf("identifier %q contains invalid characters", name)
	}
	return nil
}

// QuoteIdent quotes name for use as an SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EnsureSchema creates schema if it does not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if err := ValidateIdentifier(schema); err != nil {
		return fmt.Errorf("%s - invalid schema: %w", ensureLogPrefix, err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", QuoteIdent(schema))); err != nil {
		return fmt.Errorf("%s - CREATE SCHEMA %s failed: %w", ensureLogPrefix, schema, err)
	}
	slog.Info(fmt.Sprintf("%s - Ensured schema %q", ensureLogPrefix, schema))
	return nil
}

// TableExists reports whether schema.table exists.
func TableExists(ctx context.Context, pool *pgxpool.Pool, schema, table string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)`,
		schema, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s - failed to check table %s.%s: %w", ensureLogPrefix, schema, table, err)
	}
	return exists, nil
}
