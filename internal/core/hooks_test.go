package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func logEvent(n int) QueryEvent {
	return QueryEvent{SQL: fmt.Sprintf("SELECT %d", n)}
}

func TestExecutionLogRing(t *testing.T) {
	l := newExecutionLog(3)

	assert.Empty(t, l.snapshot())

	l.record(logEvent(1))
	l.record(logEvent(2))
	got := l.snapshot()
	assert.Equal(t, "SELECT 1", got[0].SQL)
	assert.Equal(t, "SELECT 2", got[1].SQL)

	// Overflow evicts the oldest entries, keeping order.
	l.record(logEvent(3))
	l.record(logEvent(4))
	l.record(logEvent(5))
	got = l.snapshot()
	assert.Len(t, got, 3)
	assert.Equal(t, "SELECT 3", got[0].SQL)
	assert.Equal(t, "SELECT 4", got[1].SQL)
	assert.Equal(t, "SELECT 5", got[2].SQL)

	l.clear()
	assert.Empty(t, l.snapshot())

	l.record(logEvent(6))
	got = l.snapshot()
	assert.Len(t, got, 1)
	assert.Equal(t, "SELECT 6", got[0].SQL)
}

func TestExecutionLogNil(t *testing.T) {
	var l *executionLog
	l.record(logEvent(1))
	assert.Nil(t, l.snapshot())
	l.clear()

	assert.Nil(t, newExecutionLog(0))
	assert.Nil(t, newExecutionLog(-5))
}
