package core

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/stratumdb/stratum/internal/tracer"
)

// exec and queryRows are the two ends of the shared execution path. Every
// statement the wrapper runs goes through one of them: prepared statement
// reuse, sensitive-value masking, logging, tracing, the query hook, and
// the execution log all live here so callers cannot skip them.

func (w *Wrapper) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	if err := w.guard("exec"); err != nil {
		return nil, err
	}
	ctx = w.callCtx(ctx)
	ctx, span := w.tracer.StartSpan(ctx, "stratum.exec")
	defer span.End()

	started := time.Now()
	var res sql.Result
	stmt, cached, err := w.prepare(ctx, query)
	switch {
	case err != nil:
	case cached:
		res, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			w.stmtCache.Remove(query)
			if isStmtClosed(err) {
				res, err = w.sqlDB.ExecContext(ctx, query, args...)
			}
		}
	default:
		res, err = w.sqlDB.ExecContext(ctx, query, args...)
	}
	err = classify("exec", err)

	var rows int64
	if err == nil && res != nil {
		if n, aerr := res.RowsAffected(); aerr == nil {
			rows = n
		}
	}
	w.finish(ctx, span, query, args, started, rows, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (w *Wrapper) queryRows(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	if err := w.guard("query"); err != nil {
		return nil, err
	}
	ctx = w.callCtx(ctx)
	ctx, span := w.tracer.StartSpan(ctx, "stratum.query")
	defer span.End()

	started := time.Now()
	var rows *sql.Rows
	stmt, cached, err := w.prepare(ctx, query)
	switch {
	case err != nil:
	case cached:
		rows, err = stmt.QueryContext(ctx, args...)
		if err != nil {
			w.stmtCache.Remove(query)
			if isStmtClosed(err) {
				rows, err = w.sqlDB.QueryContext(ctx, query, args...)
			}
		}
	default:
		rows, err = w.sqlDB.QueryContext(ctx, query, args...)
	}
	err = classify("query", err)
	w.finish(ctx, span, query, args, started, 0, err)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (w *Wrapper) queryCursor(ctx context.Context, query string, args []any) (*Cursor, error) {
	rows, err := w.queryRows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	src, err := newSQLRows(rows)
	if err != nil {
		return nil, classify("read columns", err)
	}
	return newCursor(src, w.mode, nil), nil
}

// prepare returns a statement for query out of the LRU cache, preparing
// and caching on miss. The cache owns returned statements; callers must
// not close them. A nil statement with cached false means the cache is
// disabled and the caller should run the query directly.
func (w *Wrapper) prepare(ctx context.Context, query string) (*sql.Stmt, bool, error) {
	if w.stmtCache == nil {
		return nil, false, nil
	}
	if stmt, ok := w.stmtCache.Get(query); ok {
		return stmt, true, nil
	}
	stmt, err := w.sqlDB.PrepareContext(ctx, query)
	if err != nil {
		return nil, false, err
	}
	w.stmtCache.Put(query, stmt)
	return stmt, true, nil
}

// isStmtClosed detects the unexported database/sql error returned when a
// cached statement was evicted and closed between Get and execution. Only
// then is a direct retry safe, since the statement never reached the
// database.
func isStmtClosed(err error) bool {
	return err != nil && strings.Contains(err.Error(), "statement is closed")
}

func (w *Wrapper) finish(ctx context.Context, span tracer.Span, query string, args []any, started time.Time, rows int64, err error) {
	elapsed := time.Since(started)
	op := tracer.DetectOperation(query)
	masked := w.sanitizer.MaskParams(query, args)

	if err != nil {
		w.log.Error("statement failed",
			"database", w.database,
			"sql", query,
			"params", w.sanitizer.FormatParams(masked),
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
	} else {
		w.log.Debug("statement executed",
			"database", w.database,
			"sql", query,
			"params", w.sanitizer.FormatParams(masked),
			"duration_ms", elapsed.Milliseconds(),
			"rows", rows)
	}

	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		SQL:          query,
		Args:         masked,
		Duration:     elapsed,
		RowsAffected: rows,
		Error:        err,
		Database:     w.dialect.Name(),
		Operation:    op,
	})

	event := QueryEvent{
		SQL:          query,
		Args:         masked,
		Duration:     elapsed,
		RowsAffected: rows,
		Error:        err,
		Operation:    op,
		At:           started,
	}
	w.invokeHook(ctx, event)
	w.execLog.record(event)
}

// screen runs the optional SQL validator over caller-supplied statements.
// Generated SQL, schema bootstrap, and metadata queries bypass it.
func (w *Wrapper) screen(query string) error {
	if w.validator == nil {
		return nil
	}
	if err := w.validator.ValidateQuery(query); err != nil {
		return wrapErr(ErrQuery, "validate", err)
	}
	return nil
}
