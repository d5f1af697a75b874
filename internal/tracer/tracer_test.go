package tracer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordingTracer builds an OtelTracer backed by an in-memory exporter.
func recordingTracer(t *testing.T) (*OtelTracer, *tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return NewOtelTracer(tp.Tracer("stratum-test")), exporter, tp
}

func spanAttributes(t *testing.T, span tracetest.SpanStub) map[string]interface{} {
	t.Helper()
	attrs := make(map[string]interface{}, len(span.Attributes))
	for _, attr := range span.Attributes {
		attrs[string(attr.Key)] = attr.Value.AsInterface()
	}
	return attrs
}

func TestNoopTracer(t *testing.T) {
	tr := &NoopTracer{}

	ctx, span := tr.StartSpan(context.Background(), "db.query")
	require.NotNil(t, span)
	assert.Equal(t, context.Background(), ctx)

	// Must not panic.
	span.SetAttributes(attribute.String("db.system", "sqlite"))
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "boom")
	span.End()
}

func TestOtelTracerRecordsSpan(t *testing.T) {
	tr, exporter, tp := recordingTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "db.query")
	span.SetAttributes(attribute.String("db.system", "postgres"))
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.query", spans[0].Name)
	assert.Equal(t, "postgres", spanAttributes(t, spans[0])["db.system"])
}

func TestOtelSpanRecordsError(t *testing.T) {
	tr, exporter, tp := recordingTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "db.exec")
	span.RecordError(errors.New("connection refused"))
	span.SetStatus(codes.Error, "connection refused")
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestAddQueryAttributes(t *testing.T) {
	tr, exporter, tp := recordingTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "db.query")
	AddQueryAttributes(span, &QueryMetadata{
		SQL:          "SELECT * FROM users WHERE id = ?",
		Args:         []interface{}{123},
		Duration:     15 * time.Millisecond,
		RowsAffected: 1,
		Database:     "sqlite",
		Operation:    "SELECT",
		Table:        "users",
	})
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	attrs := spanAttributes(t, spans[0])
	assert.Equal(t, "sqlite", attrs["db.system"])
	assert.Equal(t, "SELECT * FROM users WHERE id = ?", attrs["db.statement"])
	assert.Equal(t, "SELECT", attrs["db.operation"])
	assert.Equal(t, 15.0, attrs["db.duration_ms"])
	assert.Equal(t, "users", attrs["db.table"])
	assert.Equal(t, int64(1), attrs["db.rows_affected"])
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestAddQueryAttributesError(t *testing.T) {
	tr, exporter, tp := recordingTracer(t)

	ctx, span := tr.StartSpan(context.Background(), "db.exec")
	AddQueryAttributes(span, &QueryMetadata{
		SQL:       "UPDATE users SET status = ?",
		Database:  "postgres",
		Operation: "UPDATE",
		Error:     errors.New("deadlock detected"),
	})
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "deadlock detected", spans[0].Status.Description)
}

func TestAddQueryAttributesTruncatesStatement(t *testing.T) {
	tr, exporter, tp := recordingTracer(t)

	long := "SELECT * FROM t WHERE c = '" + strings.Repeat("x", 2000) + "'"
	ctx, span := tr.StartSpan(context.Background(), "db.query")
	AddQueryAttributes(span, &QueryMetadata{SQL: long, Database: "sqlite", Operation: "SELECT"})
	span.End()

	_ = tp.ForceFlush(ctx)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	stmt, ok := spanAttributes(t, spans[0])["db.statement"].(string)
	require.True(t, ok)
	assert.Len(t, stmt, maxStatementLen)
}

func TestDetectOperation(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT * FROM users", want: "SELECT"},
		{sql: "  select 1", want: "SELECT"},
		{sql: "WITH cte AS (SELECT 1) SELECT * FROM cte", want: "SELECT"},
		{sql: "INSERT INTO users (name) VALUES (?)", want: "INSERT"},
		{sql: "UPDATE users SET name = ?", want: "UPDATE"},
		{sql: "DELETE FROM users", want: "DELETE"},
		{sql: "CREATE TABLE t (id integer)", want: "CREATE"},
		{sql: "DROP TABLE t", want: "DROP"},
		{sql: "ALTER TABLE t ADD COLUMN c text", want: "ALTER"},
		{sql: "DECLARE cur CURSOR FOR SELECT 1", want: "DECLARE"},
		{sql: "FETCH FORWARD 100 FROM cur", want: "FETCH"},
		{sql: "CLOSE cur", want: "CLOSE"},
		{sql: "VACUUM", want: "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want+" "+tt.sql[:min(10, len(tt.sql))], func(t *testing.T) {
			assert.Equal(t, tt.want, DetectOperation(tt.sql))
		})
	}
}
