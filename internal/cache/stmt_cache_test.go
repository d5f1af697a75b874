package cache

import (
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func prepare(t *testing.T, db *sql.DB, query string) *sql.Stmt {
	t.Helper()
	stmt, err := db.Prepare(query)
	require.NoError(t, err)
	return stmt
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "explicit", capacity: 16, want: 16},
		{name: "zero falls back", capacity: 0, want: DefaultCapacity},
		{name: "negative falls back", capacity: -5, want: DefaultCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.capacity)
			require.NotNil(t, c)
			assert.Equal(t, tt.want, c.Stats().Capacity)
			assert.Equal(t, 0, c.Len())
		})
	}
}

func TestGetPut(t *testing.T) {
	db := testDB(t)
	c := New(8)

	stmt, ok := c.Get("SELECT 1")
	assert.Nil(t, stmt)
	assert.False(t, ok)

	prepared := prepare(t, db, "SELECT 1")
	c.Put("SELECT 1", prepared)

	stmt, ok = c.Get("SELECT 1")
	require.True(t, ok)
	assert.Same(t, prepared, stmt)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestPutReplacesExisting(t *testing.T) {
	db := testDB(t)
	c := New(8)

	first := prepare(t, db, "SELECT 1")
	second := prepare(t, db, "SELECT 1")

	c.Put("SELECT 1", first)
	c.Put("SELECT 1", second)

	assert.Equal(t, 1, c.Len())
	stmt, ok := c.Get("SELECT 1")
	require.True(t, ok)
	assert.Same(t, second, stmt)

	// The replaced statement was closed.
	err := first.QueryRow().Scan(new(int))
	assert.Error(t, err)
}

func TestLRUEviction(t *testing.T) {
	db := testDB(t)
	c := New(3)

	for i := 1; i <= 3; i++ {
		q := fmt.Sprintf("SELECT %d", i)
		c.Put(q, prepare(t, db, q))
	}
	assert.Equal(t, uint64(0), c.Stats().Evictions)

	// Touch SELECT 1 so SELECT 2 becomes the eviction candidate.
	_, ok := c.Get("SELECT 1")
	require.True(t, ok)

	c.Put("SELECT 4", prepare(t, db, "SELECT 4"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, uint64(1), c.Stats().Evictions)

	_, ok = c.Get("SELECT 2")
	assert.False(t, ok)
	_, ok = c.Get("SELECT 1")
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	db := testDB(t)
	c := New(8)

	c.Put("SELECT 1", prepare(t, db, "SELECT 1"))
	c.Remove("SELECT 1")

	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("SELECT 1")
	assert.False(t, ok)

	// Removing an absent key is a no-op.
	c.Remove("SELECT missing")
}

func TestClear(t *testing.T) {
	db := testDB(t)
	c := New(8)

	stmt := prepare(t, db, "SELECT 1")
	c.Put("SELECT 1", stmt)
	c.Put("SELECT 2", prepare(t, db, "SELECT 2"))

	c.Clear()

	assert.Equal(t, 0, c.Len())
	err := stmt.QueryRow().Scan(new(int))
	assert.Error(t, err)

	// Cache remains usable after Clear.
	c.Put("SELECT 3", prepare(t, db, "SELECT 3"))
	assert.Equal(t, 1, c.Len())
}

func TestConcurrentAccess(t *testing.T) {
	db := testDB(t)
	c := New(16)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q := fmt.Sprintf("SELECT %d", j%20)
				if _, ok := c.Get(q); !ok {
					stmt, err := db.Prepare(q)
					if err == nil {
						c.Put(q, stmt)
					}
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
	stats := c.Stats()
	assert.Positive(t, stats.Hits+stats.Misses)
}
