// Package stratum provides a thin database abstraction layer over SQLite,
// PostgreSQL, and MySQL. It wraps database/sql with a fluent single-table
// query builder, keyed row fetching, idempotent schema bootstrap, prepared
// statement caching, and OpenTelemetry tracing out of the box.
package stratum

import (
	"github.com/stratumdb/stratum/internal/analyzer"
	"github.com/stratumdb/stratum/internal/cache"
	"github.com/stratumdb/stratum/internal/core"
)

type (
	// DB represents a wrapped database connection with caching and tracing capabilities.
	DB = core.Wrapper
	// Option is a functional option for configuring DB.
	Option = core.Option
	// QueryBuilder accumulates clauses for a single-table SELECT.
	QueryBuilder = core.QueryBuilder
	// Cursor streams rows from an executed query.
	Cursor = core.Cursor
	// Row is one fetched row with keyed column access.
	Row = core.Row
	// QueryMode selects how fetched rows expose their columns.
	QueryMode = core.QueryMode
	// QueryEvent describes one executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook receives a QueryEvent after each statement.
	QueryHook = core.QueryHook
	// Params holds named parameters for QueryNamed and ExecNamed.
	Params = core.Params
	// Schema pairs a table name with its CREATE statement.
	Schema = core.Schema
	// Error is the classified error type returned by all operations.
	Error = core.Error

	// SQLiteConfig configures OpenSQLite.
	SQLiteConfig = core.SQLiteConfig
	// PostgresConfig configures OpenPostgres.
	PostgresConfig = core.PostgresConfig
	// MySQLConfig configures OpenMySQL.
	MySQLConfig = core.MySQLConfig

	// Plan is a parsed execution plan from Explain or ExplainAnalyze.
	Plan = analyzer.Plan
	// CacheStats reports prepared statement cache counters.
	CacheStats = cache.Stats
)

// Query modes.
const (
	QueryModeDict = core.QueryModeDict
	QueryModeFlat = core.QueryModeFlat
)

// Re-export core functions.
var (
	Open              = core.Open
	WrapDB            = core.WrapDB
	OpenSQLite        = core.OpenSQLite
	OpenPostgres      = core.OpenPostgres
	OpenMySQL         = core.OpenMySQL
	DefaultSQLitePath = core.DefaultSQLitePath

	WithLogger            = core.WithLogger
	WithSlogLogger        = core.WithSlogLogger
	WithTracer            = core.WithTracer
	WithQueryHook         = core.WithQueryHook
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithConnMaxLifetime   = core.WithConnMaxLifetime
	WithConnMaxIdleTime   = core.WithConnMaxIdleTime
	WithQueryMode         = core.WithQueryMode
	WithSchemas           = core.WithSchemas
	WithSchema            = core.WithSchema
	WithAutoCreate        = core.WithAutoCreate
	WithExecutionLog      = core.WithExecutionLog
	WithHealthCheck       = core.WithHealthCheck
	WithConnectTimeout    = core.WithConnectTimeout
	WithSensitiveFields   = core.WithSensitiveFields
	WithQueryValidation   = core.WithQueryValidation
	WithDatabaseName      = core.WithDatabaseName
	WithSchemaName        = core.WithSchemaName

	// Error classification
	ErrConnection = core.ErrConnection
	ErrQuery      = core.ErrQuery
	ErrState      = core.ErrState
	ErrSchema     = core.ErrSchema
	ErrNotFound   = core.ErrNotFound
	ErrClosed     = core.ErrClosed
	ErrConstraint = core.ErrConstraint
	ErrDuplicate  = core.ErrDuplicate
	IsNotFound    = core.IsNotFound
	IsDuplicate   = core.IsDuplicate
	IsConstraint  = core.IsConstraint
	IsConnection  = core.IsConnection

	DetectOperation = core.DetectOperation
)
