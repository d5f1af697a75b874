package core

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
)

// QueryBuilder accumulates clauses for a single-table SELECT and renders
// them in a fixed order: SELECT, FROM, WHERE, GROUP BY, ORDER BY, LIMIT,
// OFFSET. Clause methods mutate the builder and return it for chaining;
// Build is pure and may be called repeatedly.
//
// Conditions join left to right with the conjunction each method carries,
// without grouping parentheses:
//
//	db.Builder("users").
//	    Where("active", 1).
//	    OrWhere("role", "admin").
//	    Order("created_at")
//
// renders WHERE active = ? OR role = ? and orders newest first. Column
// and table names pass through verbatim, so expressions like COUNT(*)
// are fine; only values are bound as parameters.
//
// A builder is not safe for concurrent use.
type QueryBuilder struct {
	w       *Wrapper
	dialect dialect
	table   string
	ctx     context.Context

	cols      []string
	wheres    []whereFrag
	groupBy   []string
	orderCols []string
	orderDir  string
	limit     *int
	offset    *int

	fetchSize int
	cursor    *Cursor
	exhausted bool
}

// dialect is the slice of dialects.Dialect the builder needs. Declared
// locally so builder tests can stub it without a registry entry.
type dialect interface {
	Name() string
	Placeholder(n int) string
	PreQuery() string
	SupportsServerCursor() bool
}

type whereFrag struct {
	conj string
	expr string
	args []any
}

// Select appends result columns. Without it the query selects *.
func (b *QueryBuilder) Select(cols ...string) *QueryBuilder {
	b.touch()
	b.cols = append(b.cols, cols...)
	return b
}

// Where adds an equality condition joined with AND. A nil value renders
// IS NULL and binds no parameter.
func (b *QueryBuilder) Where(col string, value any) *QueryBuilder {
	return b.WhereOp(col, "=", value)
}

// WhereOp adds a condition with an explicit comparison operator, joined
// with AND. With a nil value, = renders IS NULL and != or <> render IS
// NOT NULL.
func (b *QueryBuilder) WhereOp(col, op string, value any) *QueryBuilder {
	b.condition("AND", col, op, value)
	return b
}

// OrWhere adds an equality condition joined with OR.
func (b *QueryBuilder) OrWhere(col string, value any) *QueryBuilder {
	return b.OrWhereOp(col, "=", value)
}

// OrWhereOp adds a condition with an explicit operator, joined with OR.
func (b *QueryBuilder) OrWhereOp(col, op string, value any) *QueryBuilder {
	b.condition("OR", col, op, value)
	return b
}

// WhereIn adds an IN condition joined with AND. An empty value list
// renders a condition that matches nothing.
func (b *QueryBuilder) WhereIn(col string, values ...any) *QueryBuilder {
	b.in("AND", col, values)
	return b
}

// OrWhereIn adds an IN condition joined with OR.
func (b *QueryBuilder) OrWhereIn(col string, values ...any) *QueryBuilder {
	b.in("OR", col, values)
	return b
}

// WhereRaw adds a raw condition fragment joined with AND. Every ? in the
// fragment must have a matching argument.
func (b *QueryBuilder) WhereRaw(fragment string, args ...any) *QueryBuilder {
	b.touch()
	b.wheres = append(b.wheres, whereFrag{conj: "AND", expr: fragment, args: args})
	return b
}

// OrWhereRaw adds a raw condition fragment joined with OR.
func (b *QueryBuilder) OrWhereRaw(fragment string, args ...any) *QueryBuilder {
	b.touch()
	b.wheres = append(b.wheres, whereFrag{conj: "OR", expr: fragment, args: args})
	return b
}

func (b *QueryBuilder) condition(conj, col, op string, value any) {
	b.touch()
	if value == nil {
		var expr string
		switch op {
		case "=":
			expr = col + " IS NULL"
		case "!=", "<>":
			expr = col + " IS NOT NULL"
		default:
			expr = col + " " + op + " NULL"
		}
		b.wheres = append(b.wheres, whereFrag{conj: conj, expr: expr})
		return
	}
	b.wheres = append(b.wheres, whereFrag{conj: conj, expr: col + " " + op + " ?", args: []any{value}})
}

func (b *QueryBuilder) in(conj, col string, values []any) {
	b.touch()
	if len(values) == 0 {
		b.wheres = append(b.wheres, whereFrag{conj: conj, expr: "1 = 0"})
		return
	}
	holders := strings.Repeat("?, ", len(values))
	expr := col + " IN (" + holders[:len(holders)-2] + ")"
	b.wheres = append(b.wheres, whereFrag{conj: conj, expr: expr, args: values})
}

// GroupBy appends grouping columns.
func (b *QueryBuilder) GroupBy(cols ...string) *QueryBuilder {
	b.touch()
	b.groupBy = append(b.groupBy, cols...)
	return b
}

// Order replaces the ordering columns, sorting descending. Use OrderAsc
// for ascending.
func (b *QueryBuilder) Order(cols ...string) *QueryBuilder {
	return b.order("DESC", cols)
}

// OrderAsc replaces the ordering columns, sorting ascending.
func (b *QueryBuilder) OrderAsc(cols ...string) *QueryBuilder {
	return b.order("ASC", cols)
}

// OrderDesc replaces the ordering columns, sorting descending.
func (b *QueryBuilder) OrderDesc(cols ...string) *QueryBuilder {
	return b.order("DESC", cols)
}

func (b *QueryBuilder) order(dir string, cols []string) *QueryBuilder {
	b.touch()
	b.orderCols = cols
	b.orderDir = dir
	return b
}

// Limit caps the number of returned rows.
func (b *QueryBuilder) Limit(n int) *QueryBuilder {
	b.touch()
	b.limit = &n
	return b
}

// Offset skips rows before returning results. It only renders together
// with Limit.
func (b *QueryBuilder) Offset(n int) *QueryBuilder {
	b.touch()
	b.offset = &n
	return b
}

// WithContext sets the context used by this builder's executions.
func (b *QueryBuilder) WithContext(ctx context.Context) *QueryBuilder {
	b.ctx = ctx
	return b
}

// ServerCursor streams results through a server-side cursor in batches
// of fetchSize rows, keeping only one batch in memory. It takes effect
// on backends that support it and is otherwise a no-op.
func (b *QueryBuilder) ServerCursor(fetchSize int) *QueryBuilder {
	b.fetchSize = fetchSize
	if fetchSize <= 0 {
		b.fetchSize = defaultFetchSize
	}
	return b
}

// touch marks the start of a new accumulation cycle after exhaustion.
// An open cursor is left alone; it keeps serving the previous execution.
func (b *QueryBuilder) touch() {
	b.exhausted = false
}

// Build renders the accumulated clauses to SQL and the parameter list.
// It does not execute and has no side effects, so the same builder
// renders the same statement every time.
func (b *QueryBuilder) Build() (string, []any) {
	var sb strings.Builder
	if pre := b.dialect.PreQuery(); pre != "" {
		sb.WriteString(pre)
		sb.WriteString(" ")
	}

	cols := "*"
	if len(b.cols) > 0 {
		cols = strings.Join(b.cols, ", ")
	}
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	args := []any{}
	if len(b.wheres) > 0 {
		sb.WriteString(" WHERE ")
		for i, frag := range b.wheres {
			if i > 0 {
				sb.WriteString(" ")
				sb.WriteString(frag.conj)
				sb.WriteString(" ")
			}
			sb.WriteString(frag.expr)
			args = append(args, frag.args...)
		}
	}

	if len(b.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.groupBy, ", "))
	}
	if len(b.orderCols) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.orderCols, ", "))
		sb.WriteString(" ")
		sb.WriteString(b.orderDir)
	}
	if b.limit != nil {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(*b.limit))
		if b.offset != nil {
			sb.WriteString(" OFFSET ")
			sb.WriteString(strconv.Itoa(*b.offset))
		}
	}
	sb.WriteString(";")
	return b.renumber(sb.String()), args
}

// renumber rewrites ? placeholders to the dialect's positional style.
func (b *QueryBuilder) renumber(query string) string {
	if b.dialect.Placeholder(1) == "?" {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString(b.dialect.Placeholder(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Execute runs the built query and returns its cursor. While a cursor
// from a previous Execute is still open it is returned unchanged; after
// exhaustion Execute starts a fresh execution.
func (b *QueryBuilder) Execute() (*Cursor, error) {
	if b.cursor != nil {
		return b.cursor, nil
	}
	if b.w == nil {
		return nil, wrapErr(ErrState, "execute", errNotBound())
	}
	b.exhausted = false
	query, args := b.Build()

	var (
		cur *Cursor
		err error
	)
	if b.fetchSize > 0 && b.dialect.SupportsServerCursor() {
		cur, err = b.w.serverCursorQuery(b.ctx, query, args, b.fetchSize)
	} else {
		cur, err = b.w.queryCursor(b.ctx, query, args)
	}
	if err != nil {
		return nil, err
	}
	cur.onClose = func() {
		if b.cursor == cur {
			b.cursor = nil
		}
	}
	b.cursor = cur
	return cur, nil
}

// Fetch executes if needed, returns the next unread row or nil when
// there is none, and releases the cursor.
func (b *QueryBuilder) Fetch() (*Row, error) {
	if b.exhausted {
		return nil, nil
	}
	cur, err := b.Execute()
	if err != nil {
		return nil, err
	}
	var row *Row
	if cur.Next() {
		r := cur.Row()
		row = &r
	}
	if err := cur.Err(); err != nil {
		_ = b.CloseCursor()
		return nil, err
	}
	if err := b.CloseCursor(); err != nil {
		return nil, err
	}
	return row, nil
}

// FetchNext executes if needed and returns the next row, keeping the
// cursor open between calls. At exhaustion it returns nil, nil, releases
// the cursor, and keeps returning nil until CloseCursor or a clause
// method starts a new cycle.
func (b *QueryBuilder) FetchNext() (*Row, error) {
	if b.exhausted {
		return nil, nil
	}
	cur, err := b.Execute()
	if err != nil {
		return nil, err
	}
	if cur.Next() {
		r := cur.Row()
		return &r, nil
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	b.exhausted = true
	return nil, nil
}

// All executes if needed and returns every remaining row.
func (b *QueryBuilder) All() ([]Row, error) {
	if b.exhausted {
		return []Row{}, nil
	}
	cur, err := b.Execute()
	if err != nil {
		return nil, err
	}
	rows := []Row{}
	for cur.Next() {
		rows = append(rows, cur.Row())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	b.exhausted = true
	return rows, nil
}

// Each executes if needed and calls fn for every remaining row. A non-nil
// error from fn stops iteration, releases the cursor, and is returned.
func (b *QueryBuilder) Each(fn func(Row) error) error {
	if b.exhausted {
		return nil
	}
	cur, err := b.Execute()
	if err != nil {
		return err
	}
	for cur.Next() {
		if err := fn(cur.Row()); err != nil {
			_ = b.CloseCursor()
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	b.exhausted = true
	return nil
}

// One runs the built query fresh and scans the first row into dest, a
// pointer to a struct. Fields map by db tag or snake-cased name. With no
// matching row it returns an ErrNotFound wrapping sql.ErrNoRows.
func (b *QueryBuilder) One(dest any) error {
	rows, err := b.typedRows()
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return classify("one "+b.table, err)
		}
		return wrapErr(ErrNotFound, "one "+b.table, sql.ErrNoRows)
	}
	if err := globalScanner.scanRow(rows, dest); err != nil {
		return classify("one "+b.table, err)
	}
	return classify("one "+b.table, rows.Close())
}

// AllInto runs the built query fresh and scans every row into dest, a
// pointer to a slice of structs or struct pointers.
func (b *QueryBuilder) AllInto(dest any) error {
	rows, err := b.typedRows()
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := globalScanner.scanRows(rows, dest); err != nil {
		return classify("all "+b.table, err)
	}
	return classify("all "+b.table, rows.Close())
}

// typedRows is the struct-scanning execution path. It bypasses the
// cursor state machine and always runs fresh.
func (b *QueryBuilder) typedRows() (*sql.Rows, error) {
	if b.w == nil {
		return nil, wrapErr(ErrState, "execute", errNotBound())
	}
	query, args := b.Build()
	return b.w.queryRows(b.ctx, query, args)
}

// CloseCursor releases the open cursor, if any, and resets the builder to
// accumulating with its clauses intact. It is idempotent.
func (b *QueryBuilder) CloseCursor() error {
	b.exhausted = false
	cur := b.cursor
	if cur == nil {
		return nil
	}
	b.cursor = nil
	return cur.Close()
}

func errNotBound() error {
	return errors.New("builder is not bound to a database")
}
