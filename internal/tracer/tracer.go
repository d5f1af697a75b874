// Package tracer provides the tracing abstraction used by stratum. The
// default is a no-op; NewOtelTracer adapts an OpenTelemetry tracer.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around statement execution.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span captures one traced operation.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is the default tracer; it records nothing.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan discards everything.
type NoopSpan struct{}

// SetAttributes does nothing.
func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}

// RecordError does nothing.
func (n *NoopSpan) RecordError(_ error) {}

// SetStatus does nothing.
func (n *NoopSpan) SetStatus(_ codes.Code, _ string) {}

// End does nothing.
func (n *NoopSpan) End() {}

// OtelTracer adapts an OpenTelemetry tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer wraps an OpenTelemetry tracer. The tracer must not be nil.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts an OpenTelemetry span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &OtelSpan{span: span}
}

// OtelSpan wraps an OpenTelemetry span.
type OtelSpan struct {
	span trace.Span
}

// SetAttributes sets attributes on the underlying span.
func (s *OtelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// RecordError records an error on the underlying span.
func (s *OtelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

// SetStatus sets the status of the underlying span.
func (s *OtelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End completes the underlying span.
func (s *OtelSpan) End() {
	s.span.End()
}

// maxStatementLen bounds db.statement attribute size.
const maxStatementLen = 1024

// QueryMetadata describes one executed statement for span attribution,
// following OpenTelemetry database semantic conventions.
type QueryMetadata struct {
	SQL          string
	Args         []interface{}
	Duration     time.Duration
	RowsAffected int64
	Error        error
	Database     string // db.system: postgres, mysql, sqlite
	Operation    string // SELECT, INSERT, ...
	Table        string // primary table when known
}

// AddQueryAttributes applies database semantic convention attributes to a
// span. Statements are truncated to keep span payloads bounded; mask
// sensitive parameters before they reach the metadata.
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	stmt := meta.SQL
	if len(stmt) > maxStatementLen {
		stmt = stmt[:maxStatementLen]
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", stmt),
		attribute.String("db.operation", meta.Operation),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}

	if meta.Table != "" {
		attrs = append(attrs, attribute.String("db.table", meta.Table))
	}
	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// operations recognized by DetectOperation, checked in order. WITH counts as
// SELECT; DECLARE, FETCH and CLOSE cover the server-side cursor protocol.
var operations = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE",
	"CREATE", "DROP", "ALTER",
	"DECLARE", "FETCH", "CLOSE",
}

// DetectOperation reports the SQL verb of a statement, or UNKNOWN.
func DetectOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	if strings.HasPrefix(sql, "WITH") {
		return "SELECT"
	}
	for _, op := range operations {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "UNKNOWN"
}
