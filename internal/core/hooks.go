package core

import (
	"context"
	"sync"
	"time"

	"github.com/stratumdb/stratum/internal/tracer"
)

// QueryEvent describes one executed statement. It is passed to QueryHook
// callbacks and recorded in the execution log. Args are already masked by
// the sanitizer, so hooks may ship them to external systems as is.
type QueryEvent struct {
	// SQL is the executed statement text.
	SQL string
	// Args are the bound parameters after sensitive-value masking.
	Args []interface{}
	// Duration is the execution time, excluding row consumption.
	Duration time.Duration
	// RowsAffected is the affected row count for INSERT/UPDATE/DELETE,
	// zero for reads.
	RowsAffected int64
	// Error is the execution error, nil on success.
	Error error
	// Operation is the detected verb: SELECT, INSERT, UPDATE, and so on.
	Operation string
	// At is when execution started.
	At time.Time
}

// QueryHook is a callback invoked after each statement. Use it for
// metrics, debugging, or shipping query telemetry somewhere custom.
//
//	db, _ := stratum.Open("postgres", dsn,
//	    stratum.WithQueryHook(func(ctx context.Context, e stratum.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

func (w *Wrapper) invokeHook(ctx context.Context, event QueryEvent) {
	if w.queryHook != nil {
		w.queryHook(ctx, event)
	}
}

// DetectOperation reports the SQL verb of a statement: SELECT, INSERT,
// UPDATE, DELETE, DDL verbs, or UNKNOWN.
func DetectOperation(sql string) string { return tracer.DetectOperation(sql) }

// executionLog is a fixed-size ring of the most recent query events,
// enabled with WithExecutionLog. All methods are nil-receiver safe so the
// execution path never branches on whether logging is on.
type executionLog struct {
	mu   sync.Mutex
	buf  []QueryEvent
	next int
	full bool
}

func newExecutionLog(capacity int) *executionLog {
	if capacity <= 0 {
		return nil
	}
	return &executionLog{buf: make([]QueryEvent, capacity)}
}

func (l *executionLog) record(e QueryEvent) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = e
	l.next++
	if l.next == len(l.buf) {
		l.next = 0
		l.full = true
	}
}

// snapshot returns the recorded events oldest first.
func (l *executionLog) snapshot() []QueryEvent {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		out := make([]QueryEvent, l.next)
		copy(out, l.buf[:l.next])
		return out
	}
	out := make([]QueryEvent, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	out = append(out, l.buf[:l.next]...)
	return out
}

func (l *executionLog) clear() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next = 0
	l.full = false
	for i := range l.buf {
		l.buf[i] = QueryEvent{}
	}
}
