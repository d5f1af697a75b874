package core

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stratumdb/stratum/internal/cache"
	"github.com/stratumdb/stratum/internal/logger"
	"github.com/stratumdb/stratum/internal/security"
	"github.com/stratumdb/stratum/internal/tracer"
)

// Option configures a Wrapper at construction time.
type Option func(*Wrapper)

// WithLogger sets the logger for statement and lifecycle events. The
// default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(w *Wrapper) {
		if l != nil {
			w.log = l
		}
	}
}

// WithSlogLogger routes wrapper logging to a standard library slog
// logger.
func WithSlogLogger(l *slog.Logger) Option {
	return func(w *Wrapper) {
		if l != nil {
			w.log = logger.NewSlogAdapter(l)
		}
	}
}

// WithTracer enables OpenTelemetry spans around statement execution.
func WithTracer(t trace.Tracer) Option {
	return func(w *Wrapper) {
		if t != nil {
			w.tracer = tracer.NewOtelTracer(t)
		}
	}
}

// WithQueryHook registers a callback invoked after every statement.
func WithQueryHook(hook QueryHook) Option {
	return func(w *Wrapper) {
		w.queryHook = hook
	}
}

// WithStmtCacheCapacity sizes the prepared statement cache. Zero or
// negative disables caching and statements run directly.
func WithStmtCacheCapacity(capacity int) Option {
	return func(w *Wrapper) {
		if w.stmtCache != nil {
			w.stmtCache.Clear()
		}
		if capacity <= 0 {
			w.stmtCache = nil
			return
		}
		w.stmtCache = cache.New(capacity)
	}
}

// WithMaxOpenConns caps the connection pool size.
func WithMaxOpenConns(n int) Option {
	return func(w *Wrapper) {
		w.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns caps the idle connections kept in the pool.
func WithMaxIdleConns(n int) Option {
	return func(w *Wrapper) {
		w.sqlDB.SetMaxIdleConns(n)
	}
}

// WithConnMaxLifetime bounds how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(w *Wrapper) {
		w.sqlDB.SetConnMaxLifetime(d)
	}
}

// WithConnMaxIdleTime bounds how long a connection may sit idle.
func WithConnMaxIdleTime(d time.Duration) Option {
	return func(w *Wrapper) {
		w.sqlDB.SetConnMaxIdleTime(d)
	}
}

// WithQueryMode sets how result rows expose values, dict or flat.
func WithQueryMode(mode QueryMode) Option {
	return func(w *Wrapper) {
		w.mode = mode.orDefault()
	}
}

// WithSchemas declares the tables this wrapper manages, in creation
// order. They are created at open unless WithAutoCreate(false) is set.
func WithSchemas(schemas ...Schema) Option {
	return func(w *Wrapper) {
		w.schemas = append(w.schemas, schemas...)
	}
}

// WithSchema declares a single managed table.
func WithSchema(table, create string) Option {
	return WithSchemas(Schema{Table: table, Create: create})
}

// WithAutoCreate controls whether declared schemas are created during
// open. Defaults to on.
func WithAutoCreate(enabled bool) Option {
	return func(w *Wrapper) {
		w.autoCreate = enabled
	}
}

// WithExecutionLog keeps an in-memory ring of the last capacity
// statement events, readable through ExecutionLog.
func WithExecutionLog(capacity int) Option {
	return func(w *Wrapper) {
		w.execLog = newExecutionLog(capacity)
	}
}

// WithHealthCheck starts a background ping loop on the given interval.
// Healthy and LastHealthError expose its state.
func WithHealthCheck(interval time.Duration) Option {
	return func(w *Wrapper) {
		w.healthInterval = interval
	}
}

// WithConnectTimeout bounds the verification ping run at open. Defaults
// to ten seconds.
func WithConnectTimeout(d time.Duration) Option {
	return func(w *Wrapper) {
		if d > 0 {
			w.connectTimeout = d
		}
	}
}

// WithSensitiveFields replaces the default list of column names whose
// parameter values are masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(w *Wrapper) {
		w.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithQueryValidation screens raw SQL passed to Query, Exec, and their
// variants against known injection shapes. Strict mode adds aggressive
// patterns that can reject legitimate statements.
func WithQueryValidation(strict bool) Option {
	return func(w *Wrapper) {
		w.validator = security.NewValidator(security.WithStrict(strict))
	}
}

// WithDatabaseName overrides the logical database name used in logs and
// schema bookkeeping. Backend constructors set it automatically.
func WithDatabaseName(name string) Option {
	return func(w *Wrapper) {
		if name != "" {
			w.database = name
		}
	}
}

// WithSchemaName sets the namespace consulted by metadata queries on
// backends that have one, such as PostgreSQL schemas.
func WithSchemaName(name string) Option {
	return func(w *Wrapper) {
		w.schema = name
	}
}
