// Package cache provides an LRU cache for prepared statements, keyed by SQL
// text. Statements leaving the cache (eviction, replacement, Clear) are
// closed.
package cache

import (
	"container/list"
	"database/sql"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is the statement cache capacity used when none is given.
const DefaultCapacity = 256

// StmtCache stores prepared statements with least-recently-used eviction.
// Safe for concurrent use.
type StmtCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry struct {
	key  string
	stmt *sql.Stmt
}

// New creates a statement cache. Non-positive capacity falls back to
// DefaultCapacity.
func New(capacity int) *StmtCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &StmtCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached statement for the SQL text, marking it most
// recently used.
func (c *StmtCache) Get(key string) (*sql.Stmt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return elem.Value.(*entry).stmt, true
}

// Put stores a prepared statement. A statement already cached under the same
// SQL text is closed and replaced; at capacity the least recently used entry
// is evicted and closed.
func (c *StmtCache) Put(key string, stmt *sql.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		e := elem.Value.(*entry)
		if e.stmt != stmt {
			_ = e.stmt.Close()
		}
		e.stmt = stmt
		return
	}

	if c.order.Len() >= c.capacity {
		c.evictOldest()
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, stmt: stmt})
}

// Remove drops and closes the statement cached for the SQL text, if any.
// Used after execution errors so the next run re-prepares.
func (c *StmtCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return
	}
	c.order.Remove(elem)
	delete(c.entries, key)
	_ = elem.Value.(*entry).stmt.Close()
}

// evictOldest removes and closes the least recently used entry. Caller holds
// the lock.
func (c *StmtCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}

	c.order.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.entries, e.key)
	_ = e.stmt.Close()
	c.evictions.Add(1)
}

// Clear closes and removes every cached statement.
func (c *StmtCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		_ = elem.Value.(*entry).stmt.Close()
	}
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Len returns the number of cached statements.
func (c *StmtCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats holds cache performance counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns a snapshot of the cache counters.
func (c *StmtCache) Stats() Stats {
	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   rate,
	}
}
