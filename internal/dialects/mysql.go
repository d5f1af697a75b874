package dialects

import (
	"fmt"
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

// Name returns "mysql".
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// PreQuery returns an empty prefix; MySQL needs no session setup.
func (d *MySQLDialect) PreQuery() string {
	return ""
}

// TableExistsSQL probes information_schema.tables within the current database.
func (d *MySQLDialect) TableExistsSQL() (string, bool) {
	return "SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?)", false
}

// ListTablesSQL lists base tables of the current database.
func (d *MySQLDialect) ListTablesSQL() (string, bool) {
	return "SELECT table_name AS name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'", false
}

// DropTableSQL generates a DROP TABLE statement with optional IF EXISTS guard.
func (d *MySQLDialect) DropTableSQL(table string, ifExists bool) string {
	if ifExists {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdentifier(table))
	}
	return fmt.Sprintf("DROP TABLE %s", d.QuoteIdentifier(table))
}

// SupportsServerCursor reports false; MySQL has no DECLARE/FETCH outside
// stored programs.
func (d *MySQLDialect) SupportsServerCursor() bool {
	return false
}

// SupportsLastInsertID reports true.
func (d *MySQLDialect) SupportsLastInsertID() bool {
	return true
}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}
