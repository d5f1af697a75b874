package core

import "database/sql"

// rowSource is a stream of materialized rows. Next returns nil values with
// a nil error at exhaustion. Implementations are sql.Rows streams and
// PostgreSQL server-side cursors.
type rowSource interface {
	Columns() []string
	Next() ([]any, error)
	Close() error
}

// Cursor iterates a result set one Row at a time.
//
//	cur, err := db.Query(ctx, "SELECT * FROM items")
//	for cur.Next() {
//		r := cur.Row()
//	}
//	err = cur.Err()
//
// The cursor closes itself when the stream is exhausted or fails, and an
// explicit Close is safe at any point, any number of times.
type Cursor struct {
	src     rowSource
	mode    QueryMode
	cols    []string
	cur     Row
	err     error
	closed  bool
	onClose func()
}

func newCursor(src rowSource, mode QueryMode, onClose func()) *Cursor {
	return &Cursor{src: src, mode: mode, cols: src.Columns(), onClose: onClose}
}

// Columns returns the column names of the result set.
func (c *Cursor) Columns() []string { return c.cols }

// Next advances to the next row, reporting false at exhaustion or on
// error. After false, Err distinguishes the two.
func (c *Cursor) Next() bool {
	if c.closed {
		return false
	}
	vals, err := c.src.Next()
	if err != nil {
		c.err = classify("fetch row", err)
		_ = c.Close()
		return false
	}
	if vals == nil {
		_ = c.Close()
		return false
	}
	c.cur = newRow(c.cols, vals, c.mode)
	return true
}

// Row returns the row read by the last successful Next.
func (c *Cursor) Row() Row { return c.cur }

// Err returns the first error hit while iterating, if any.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying stream. It is idempotent.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.src.Close()
	if c.onClose != nil {
		c.onClose()
	}
	return classify("close cursor", err)
}

// sqlRows adapts *sql.Rows to a rowSource, copying byte slices out of the
// driver's reusable scan buffer.
type sqlRows struct {
	rows *sql.Rows
	cols []string
}

func newSQLRows(rows *sql.Rows) (*sqlRows, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, cols: cols}, nil
}

func (s *sqlRows) Columns() []string { return s.cols }

func (s *sqlRows) Next() ([]any, error) {
	if !s.rows.Next() {
		return nil, s.rows.Err()
	}
	return scanValues(s.rows, len(s.cols))
}

func (s *sqlRows) Close() error { return s.rows.Close() }

func scanValues(rows *sql.Rows, n int) ([]any, error) {
	vals := make([]any, n)
	ptrs := make([]any, n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			vals[i] = cp
		}
	}
	return vals, nil
}
