// Package logger provides the logging abstraction used throughout stratum.
// The default is a no-op; callers plug in log/slog or any implementation of
// the Logger interface.
package logger

import "log/slog"

// Logger is the structured logging interface stratum emits through.
// Arguments are alternating key-value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default when no logger is
// configured.
type NoopLogger struct{}

// Debug does nothing.
func (n *NoopLogger) Debug(_ string, _ ...any) {}

// Info does nothing.
func (n *NoopLogger) Info(_ string, _ ...any) {}

// Warn does nothing.
func (n *NoopLogger) Warn(_ string, _ ...any) {}

// Error does nothing.
func (n *NoopLogger) Error(_ string, _ ...any) {}

// SlogAdapter adapts a *slog.Logger to the Logger interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps an slog.Logger. The logger must not be nil.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Debug logs at debug level.
func (a *SlogAdapter) Debug(msg string, args ...any) {
	a.logger.Debug(msg, args...)
}

// Info logs at info level.
func (a *SlogAdapter) Info(msg string, args ...any) {
	a.logger.Info(msg, args...)
}

// Warn logs at warn level.
func (a *SlogAdapter) Warn(msg string, args ...any) {
	a.logger.Warn(msg, args...)
}

// Error logs at error level.
func (a *SlogAdapter) Error(msg string, args ...any) {
	a.logger.Error(msg, args...)
}
