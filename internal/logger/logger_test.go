package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopLogger(t *testing.T) {
	l := &NoopLogger{}

	// Must not panic, with or without args.
	l.Debug("query executed")
	l.Info("query executed", "rows", 3)
	l.Warn("slow query", "duration_ms", 1200)
	l.Error("query failed", "error", "disk I/O")
}

func TestSlogAdapterLevels(t *testing.T) {
	tests := []struct {
		name      string
		logFunc   func(Logger, string, ...any)
		wantLevel string
	}{
		{name: "debug", logFunc: func(l Logger, msg string, args ...any) { l.Debug(msg, args...) }, wantLevel: "DEBUG"},
		{name: "info", logFunc: func(l Logger, msg string, args ...any) { l.Info(msg, args...) }, wantLevel: "INFO"},
		{name: "warn", logFunc: func(l Logger, msg string, args ...any) { l.Warn(msg, args...) }, wantLevel: "WARN"},
		{name: "error", logFunc: func(l Logger, msg string, args ...any) { l.Error(msg, args...) }, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))

			tt.logFunc(l, "stmt done", "table", "users")

			out := buf.String()
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "stmt done")
			assert.Contains(t, out, "table=users")
		})
	}
}

func TestSlogAdapterJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Info("query executed",
		"sql", "SELECT * FROM users WHERE id = ?",
		"duration_ms", 15,
		"rows", 1)

	out := buf.String()
	assert.Contains(t, out, `"msg":"query executed"`)
	assert.Contains(t, out, `"sql":"SELECT * FROM users WHERE id = ?"`)
	assert.Contains(t, out, `"duration_ms":15`)
	assert.Contains(t, out, `"rows":1`)
}

func BenchmarkNoopLogger(b *testing.B) {
	l := &NoopLogger{}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		l.Debug("query executed", "sql", "SELECT * FROM users", "rows", 100)
	}
}
