// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting, placeholder
// styles, metadata queries, and per-backend capabilities.
package dialects

// Dialect defines database-specific behaviors.
//
// A dialect is stateless; everything that varies per connection (database
// name, schema) is bound by the caller as query arguments.
type Dialect interface {
	// Name returns the canonical dialect name (postgres, sqlite, mysql).
	Name() string

	QuoteIdentifier(string) string
	Placeholder(int) string

	// PreQuery returns a fragment prefixed to every built query. Empty for
	// all shipped dialects; session settings that historically rode along as
	// an extra statement (PostgreSQL timezone) are connection parameters
	// instead, since prepared statements take exactly one statement.
	PreQuery() string

	// TableExistsSQL returns the query probing for a single table. The query
	// takes the table name as its last argument; needsSchema reports whether
	// the current schema must be bound before it.
	TableExistsSQL() (query string, needsSchema bool)

	// ListTablesSQL returns the query listing table names in the current
	// database, one column named "name" per row.
	ListTablesSQL() (query string, needsSchema bool)

	DropTableSQL(table string, ifExists bool) string

	// SupportsServerCursor reports whether DECLARE/FETCH server-side cursors
	// are available for incremental result streaming.
	SupportsServerCursor() bool

	// SupportsLastInsertID reports whether sql.Result.LastInsertId works for
	// this backend. PostgreSQL callers read the sequence instead.
	SupportsLastInsertID() bool
}

var dialects = make(map[string]Dialect)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	dialects[name] = d
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := dialects[name]; ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// Find retrieves a registered dialect by driver name without panicking, for
// callers that surface configuration errors instead.
func Find(name string) (Dialect, bool) {
	d, ok := dialects[name]
	return d, ok
}
