// Package core implements the Stratum database wrapper: managed
// connections, keyed result rows, the query builder, and idempotent
// schema bootstrap over database/sql.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stratumdb/stratum/internal/cache"
	"github.com/stratumdb/stratum/internal/dialects"
	"github.com/stratumdb/stratum/internal/logger"
	"github.com/stratumdb/stratum/internal/security"
	"github.com/stratumdb/stratum/internal/tracer"
)

// Wrapper manages one database handle: connection lifecycle, statement
// caching, query execution with logging and tracing, and schema
// bootstrap. It is safe for concurrent use. The zero value is not usable;
// construct with Open, WrapDB, or a backend constructor.
type Wrapper struct {
	sqlDB      *sql.DB
	driverName string
	dialect    dialects.Dialect
	database   string
	schema     string
	mode       QueryMode

	log       logger.Logger
	sanitizer *logger.Sanitizer
	tracer    tracer.Tracer
	queryHook QueryHook
	stmtCache *cache.StmtCache
	execLog   *executionLog
	validator *security.Validator

	schemas    []Schema
	autoCreate bool
	createdMu  sync.Mutex
	created    map[string]struct{}

	healthInterval time.Duration
	health         *healthChecker

	connectTimeout time.Duration

	ctx    context.Context
	closed atomic.Bool
}

// connMeta carries backend identity into openWrapper. The generic Open
// only knows the driver name; backend constructors fill in the rest.
type connMeta struct {
	database string
	schema   string
	mode     QueryMode
}

const defaultConnectTimeout = 10 * time.Second

// Open connects using a registered driver name, verifies the connection
// with a ping, and bootstraps any schemas declared via WithSchemas. The
// driver name selects the SQL dialect, so it must be one of sqlite3,
// sqlite, postgres, postgresql, pgx, or mysql.
func Open(driverName, dsn string, opts ...Option) (*Wrapper, error) {
	return openWrapper(driverName, dsn, connMeta{database: driverName}, opts...)
}

func openWrapper(driverName, dsn string, meta connMeta, opts ...Option) (*Wrapper, error) {
	d, ok := dialects.Find(driverName)
	if !ok {
		return nil, wrapErr(ErrState, "open", fmt.Errorf("no dialect registered for driver %q", driverName))
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, wrapErr(ErrConnection, "open", err)
	}
	w := newWrapper(sqlDB, driverName, d, meta, opts...)
	if err := w.mode.Validate(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(w.callCtx(nil), w.connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, wrapErr(ErrConnection, "open "+w.database, err)
	}

	if w.autoCreate && len(w.schemas) > 0 {
		if _, err := w.CreateSchemas(ctx); err != nil {
			sqlDB.Close()
			return nil, err
		}
	}
	w.startHealthCheck()
	return w, nil
}

// WrapDB adopts an already opened *sql.DB. The dialect name must be
// registered; the handle is pinged to verify it is alive. Closing the
// wrapper closes the adopted handle.
func WrapDB(sqlDB *sql.DB, dialectName string, opts ...Option) (*Wrapper, error) {
	d, ok := dialects.Find(dialectName)
	if !ok {
		return nil, wrapErr(ErrState, "wrap", fmt.Errorf("no dialect registered for %q", dialectName))
	}
	w := newWrapper(sqlDB, dialectName, d, connMeta{database: dialectName}, opts...)
	if err := w.mode.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(w.callCtx(nil), w.connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, wrapErr(ErrConnection, "wrap "+w.database, err)
	}
	if w.autoCreate && len(w.schemas) > 0 {
		if _, err := w.CreateSchemas(ctx); err != nil {
			return nil, err
		}
	}
	w.startHealthCheck()
	return w, nil
}

func newWrapper(sqlDB *sql.DB, driverName string, d dialects.Dialect, meta connMeta, opts ...Option) *Wrapper {
	w := &Wrapper{
		sqlDB:          sqlDB,
		driverName:     driverName,
		dialect:        d,
		database:       meta.database,
		schema:         meta.schema,
		mode:           meta.mode.orDefault(),
		log:            &logger.NoopLogger{},
		sanitizer:      logger.NewSanitizer(nil),
		tracer:         &tracer.NoopTracer{},
		stmtCache:      cache.New(cache.DefaultCapacity),
		autoCreate:     true,
		created:        make(map[string]struct{}),
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Close stops the health checker, closes cached statements, and closes
// the underlying handle. It is idempotent.
func (w *Wrapper) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	if w.health != nil {
		w.health.shutdown()
	}
	if w.stmtCache != nil {
		w.stmtCache.Clear()
	}
	if err := w.sqlDB.Close(); err != nil {
		return wrapErr(ErrConnection, "close "+w.database, err)
	}
	w.log.Debug("database closed", "database", w.database)
	return nil
}

// WithContext returns a copy of the wrapper whose operations default to
// ctx when a call site passes nil. The copy shares the handle, cache, and
// schema bookkeeping with the original.
func (w *Wrapper) WithContext(ctx context.Context) *Wrapper {
	clone := *w
	clone.ctx = ctx
	return &clone
}

// DB exposes the underlying *sql.DB for operations the wrapper does not
// cover, such as transactions.
func (w *Wrapper) DB() *sql.DB { return w.sqlDB }

// DriverName returns the driver the wrapper was opened with.
func (w *Wrapper) DriverName() string { return w.driverName }

// DialectName returns the resolved dialect name, such as "postgres".
func (w *Wrapper) DialectName() string { return w.dialect.Name() }

// DatabaseName returns the logical database name used in logs and the
// schema bookkeeping keys.
func (w *Wrapper) DatabaseName() string { return w.database }

// QueryMode returns the row keying mode for results.
func (w *Wrapper) QueryMode() QueryMode { return w.mode }

// Ping verifies the connection is alive.
func (w *Wrapper) Ping(ctx context.Context) error {
	if err := w.guard("ping"); err != nil {
		return err
	}
	if err := w.sqlDB.PingContext(w.callCtx(ctx)); err != nil {
		return classify("ping "+w.database, err)
	}
	return nil
}

// Builder starts a query builder for one table, inheriting the wrapper's
// default context.
func (w *Wrapper) Builder(table string) *QueryBuilder {
	return &QueryBuilder{w: w, dialect: w.dialect, table: table, ctx: w.ctx}
}

// Query runs a read statement and returns a cursor over its rows.
func (w *Wrapper) Query(ctx context.Context, query string, args ...any) (*Cursor, error) {
	if err := w.screen(query); err != nil {
		return nil, err
	}
	return w.queryCursor(ctx, query, args)
}

// FetchOne runs a read statement and returns its first row, or nil when
// the result is empty. The cursor is always released.
func (w *Wrapper) FetchOne(ctx context.Context, query string, args ...any) (*Row, error) {
	cur, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return fetchOne(cur)
}

// FetchAll runs a read statement and returns every row.
func (w *Wrapper) FetchAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	cur, err := w.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return fetchAll(cur)
}

func fetchOne(cur *Cursor) (*Row, error) {
	defer cur.Close()
	if cur.Next() {
		row := cur.Row()
		return &row, nil
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func fetchAll(cur *Cursor) ([]Row, error) {
	defer cur.Close()
	rows := []Row{}
	for cur.Next() {
		rows = append(rows, cur.Row())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if err := cur.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Exec runs a write statement and returns the driver result.
func (w *Wrapper) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := w.screen(query); err != nil {
		return nil, err
	}
	return w.exec(ctx, query, args)
}

// Action runs a write statement and returns the number of affected rows.
func (w *Wrapper) Action(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := w.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify("rows affected", err)
	}
	return n, nil
}

// Insert builds and runs a single-row INSERT from a column-to-value map.
// Columns are sorted so the generated SQL is deterministic.
func (w *Wrapper) Insert(ctx context.Context, table string, values map[string]any) (sql.Result, error) {
	if len(values) == 0 {
		return nil, wrapErr(ErrQuery, "insert "+table, fmt.Errorf("no values"))
	}
	if err := security.ValidateIdentifier(table); err != nil {
		return nil, wrapErr(ErrQuery, "insert", err)
	}
	cols := make([]string, 0, len(values))
	for col := range values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	holders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, col := range cols {
		if err := security.ValidateIdentifier(col); err != nil {
			return nil, wrapErr(ErrQuery, "insert "+table, err)
		}
		quoted[i] = w.dialect.QuoteIdentifier(col)
		holders[i] = w.dialect.Placeholder(i + 1)
		args[i] = values[col]
	}
	query := "INSERT INTO " + w.dialect.QuoteIdentifier(table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(holders, ", ") + ");"
	return w.exec(ctx, query, args)
}

// TableExists reports whether a table is present, using the dialect's
// metadata catalog.
func (w *Wrapper) TableExists(ctx context.Context, table string) (bool, error) {
	query, needsSchema := w.dialect.TableExistsSQL()
	args := []any{table}
	if needsSchema {
		args = []any{w.schemaName(), table}
	}
	cur, err := w.queryCursor(ctx, query, args)
	if err != nil {
		return false, err
	}
	row, err := fetchOne(cur)
	if err != nil {
		return false, err
	}
	if row == nil || row.Len() == 0 {
		return false, nil
	}
	return truthy(row.Values()[0]), nil
}

// ListTables returns the table names visible to the connection, in the
// order the catalog yields them.
func (w *Wrapper) ListTables(ctx context.Context) ([]string, error) {
	query, needsSchema := w.dialect.ListTablesSQL()
	var args []any
	if needsSchema {
		args = []any{w.schemaName()}
	}
	cur, err := w.queryCursor(ctx, query, args)
	if err != nil {
		return nil, err
	}
	rows, err := fetchAll(cur)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Len() > 0 {
			names = append(names, asString(row.Values()[0]))
		}
	}
	return names, nil
}

func (w *Wrapper) schemaName() string {
	if w.schema != "" {
		return w.schema
	}
	return "public"
}

// ExecutionLog returns the recorded statement events, oldest first. It is
// empty unless WithExecutionLog was set.
func (w *Wrapper) ExecutionLog() []QueryEvent { return w.execLog.snapshot() }

// ClearExecutionLog discards recorded statement events.
func (w *Wrapper) ClearExecutionLog() { w.execLog.clear() }

// CacheStats reports prepared statement cache counters. Zero value when
// the cache is disabled.
func (w *Wrapper) CacheStats() cache.Stats {
	if w.stmtCache == nil {
		return cache.Stats{}
	}
	return w.stmtCache.Stats()
}

func (w *Wrapper) guard(op string) error {
	if w.closed.Load() {
		return wrapErr(ErrClosed, op, nil)
	}
	return nil
}

func (w *Wrapper) callCtx(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	if w.ctx != nil {
		return w.ctx
	}
	return context.Background()
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0" && !strings.EqualFold(t, "false") && !strings.EqualFold(t, "f")
	case []byte:
		return truthy(string(t))
	default:
		return v != nil
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
