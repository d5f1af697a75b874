package dialects

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// PreQuery returns an empty prefix; SQLite needs no session setup.
func (d *SQLiteDialect) PreQuery() string {
	return ""
}

// TableExistsSQL probes sqlite_master for the named table.
func (d *SQLiteDialect) TableExistsSQL() (string, bool) {
	return "SELECT count(name) AS table_count FROM sqlite_master WHERE type = 'table' AND name = ?", false
}

// ListTablesSQL lists user tables from sqlite_master.
func (d *SQLiteDialect) ListTablesSQL() (string, bool) {
	return "SELECT name FROM sqlite_master WHERE type = 'table'", false
}

// DropTableSQL generates a DROP TABLE statement with optional IF EXISTS guard.
func (d *SQLiteDialect) DropTableSQL(table string, ifExists bool) string {
	if ifExists {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdentifier(table))
	}
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdentifier(table))
}

// SupportsServerCursor reports false; driver rows already stream.
func (d *SQLiteDialect) SupportsServerCursor() bool {
	return false
}

// SupportsLastInsertID reports true; sqlite exposes last_insert_rowid.
func (d *SQLiteDialect) SupportsLastInsertID() bool {
	return true
}
