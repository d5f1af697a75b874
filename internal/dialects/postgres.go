package dialects

import (
	"fmt"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	// pgx stdlib registers its database/sql driver under "pgx"; a wrapped
	// handle opened that way still speaks this dialect.
	RegisterDialect("pgx", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// PreQuery returns an empty prefix. The session timezone travels as a
// connection parameter, not as a leading statement.
func (d *PostgresDialect) PreQuery() string {
	return ""
}

// TableExistsSQL probes information_schema.tables within the bound schema.
func (d *PostgresDialect) TableExistsSQL() (string, bool) {
	return "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)", true
}

// ListTablesSQL lists base tables of the bound schema.
func (d *PostgresDialect) ListTablesSQL() (string, bool) {
	return "SELECT table_name AS name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE'", true
}

// DropTableSQL generates a DROP TABLE statement with optional IF EXISTS guard.
func (d *PostgresDialect) DropTableSQL(table string, ifExists bool) string {
	if ifExists {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdentifier(table))
	}
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdentifier(table))
}

// SupportsServerCursor reports true; DECLARE/FETCH is available.
func (d *PostgresDialect) SupportsServerCursor() bool {
	return true
}

// SupportsLastInsertID reports false; lib/pq has no LastInsertId, callers
// read the owning sequence instead.
func (d *PostgresDialect) SupportsLastInsertID() bool {
	return false
}
