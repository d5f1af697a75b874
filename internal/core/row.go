package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QueryMode controls how result rows expose their values.
type QueryMode string

const (
	// QueryModeDict keys every row by column name. This is the default.
	QueryModeDict QueryMode = "dict"
	// QueryModeFlat keeps rows positional only. Column lookups report
	// missing and callers read Values by index.
	QueryModeFlat QueryMode = "flat"
)

// Validate returns an error for modes other than dict, flat, or empty.
// Empty means dict.
func (m QueryMode) Validate() error {
	switch m {
	case "", QueryModeDict, QueryModeFlat:
		return nil
	}
	return wrapErr(ErrState, "query mode", fmt.Errorf("unknown mode %q", string(m)))
}

func (m QueryMode) orDefault() QueryMode {
	if m == "" {
		return QueryModeDict
	}
	return m
}

// Row is a single result row. Values keep their driver types; byte slices
// are copied out of the driver's buffer so a Row stays valid after the
// cursor advances. In dict mode columns are addressable by name, with the
// first occurrence winning when a query yields duplicate column names.
type Row struct {
	cols  []string
	vals  []any
	index map[string]int
}

func newRow(cols []string, vals []any, mode QueryMode) Row {
	r := Row{cols: cols, vals: vals}
	if mode.orDefault() == QueryModeDict {
		r.index = make(map[string]int, len(cols))
		for i, c := range cols {
			if _, dup := r.index[c]; !dup {
				r.index[c] = i
			}
		}
	}
	return r
}

// Columns returns the column names in result order.
func (r Row) Columns() []string { return r.cols }

// Values returns the raw values in result order.
func (r Row) Values() []any { return r.vals }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.cols) }

// Has reports whether the row has a value for col. Always false in flat mode.
func (r Row) Has(col string) bool {
	_, ok := r.index[col]
	return ok
}

// Get returns the value for col and whether the column exists.
func (r Row) Get(col string) (any, bool) {
	i, ok := r.index[col]
	if !ok {
		return nil, false
	}
	return r.vals[i], true
}

// Value returns the value for col, or nil when absent.
func (r Row) Value(col string) any {
	v, _ := r.Get(col)
	return v
}

// IsNull reports whether col exists and holds SQL NULL.
func (r Row) IsNull(col string) bool {
	v, ok := r.Get(col)
	return ok && v == nil
}

// String returns col as a string. NULL and missing columns yield "".
func (r Row) String(col string) string {
	switch v := r.Value(col).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int64 returns col as an int64. Strings are parsed; NULL, missing, and
// unconvertible values yield 0.
func (r Row) Int64(col string) int64 {
	switch v := r.Value(col).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n
	default:
		return 0
	}
}

// Float64 returns col as a float64, parsing strings when needed.
func (r Row) Float64(col string) float64 {
	switch v := r.Value(col).(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		return f
	default:
		return 0
	}
}

// Bool returns col as a bool. Numeric values are true when non-zero and
// strings go through strconv.ParseBool.
func (r Row) Bool(col string) bool {
	switch v := r.Value(col).(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case []byte:
		b, _ := strconv.ParseBool(strings.TrimSpace(string(v)))
		return b
	default:
		return false
	}
}

// Time returns col as a time.Time. String values are parsed as RFC 3339
// and the common SQL datetime layouts; failures yield the zero time.
func (r Row) Time(col string) time.Time {
	switch v := r.Value(col).(type) {
	case time.Time:
		return v
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	default:
		return time.Time{}
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Bytes returns col as a byte slice, converting strings. NULL and missing
// columns yield nil.
func (r Row) Bytes(col string) []byte {
	switch v := r.Value(col).(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// Map returns the row as a column-to-value map. Flat rows return nil.
func (r Row) Map() map[string]any {
	if r.index == nil {
		return nil
	}
	m := make(map[string]any, len(r.index))
	for c, i := range r.index {
		m[c] = r.vals[i]
	}
	return m
}

// Equal reports whether two rows have the same columns and values in the
// same order. Byte slices compare equal to their string form so rows read
// through different drivers still match.
func (r Row) Equal(other Row) bool {
	if len(r.cols) != len(other.cols) {
		return false
	}
	for i := range r.cols {
		if r.cols[i] != other.cols[i] {
			return false
		}
		if !valueEqual(r.vals[i], other.vals[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Equal(bt)
		}
		return false
	}
	return a == b
}
