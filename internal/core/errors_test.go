package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	cause := errors.New("syntax error near SELECT")
	err := wrapErr(ErrQuery, "exec", cause)
	assert.Equal(t, "exec: query error: syntax error near SELECT", err.Error())

	bare := wrapErr(ErrState, "", nil)
	assert.Equal(t, "invalid state", bare.Error())

	opOnly := wrapErr(ErrClosed, "query", nil)
	assert.Equal(t, "query: database is closed", opOnly.Error())
}

func TestErrorMatching(t *testing.T) {
	cause := sql.ErrNoRows
	err := wrapErr(ErrNotFound, "one items", cause)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NotErrorIs(t, err, ErrQuery)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "one items", e.Op)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no_rows", sql.ErrNoRows, ErrNotFound},
		{"conn_done", sql.ErrConnDone, ErrConnection},
		{"tx_done", sql.ErrTxDone, ErrConnection},
		{"canceled", context.Canceled, ErrQuery},
		{"deadline", context.DeadlineExceeded, ErrQuery},
		{"pg_unique", &pq.Error{Code: "23505"}, ErrDuplicate},
		{"pg_foreign_key", &pq.Error{Code: "23503"}, ErrConstraint},
		{"pg_not_null", &pq.Error{Code: "23502"}, ErrConstraint},
		{"pg_connection_failure", &pq.Error{Code: "08006"}, ErrConnection},
		{"pg_bad_password", &pq.Error{Code: "28P01"}, ErrConnection},
		{"pg_unknown_database", &pq.Error{Code: "3D000"}, ErrConnection},
		{"pg_syntax", &pq.Error{Code: "42601"}, ErrQuery},
		{"mysql_duplicate", &mysql.MySQLError{Number: 1062}, ErrDuplicate},
		{"mysql_foreign_key", &mysql.MySQLError{Number: 1452}, ErrConstraint},
		{"mysql_access_denied", &mysql.MySQLError{Number: 1045}, ErrConnection},
		{"mysql_syntax", &mysql.MySQLError{Number: 1064}, ErrQuery},
		{"mysql_invalid_conn", mysql.ErrInvalidConn, ErrConnection},
		{
			"sqlite_unique",
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			ErrDuplicate,
		},
		{
			"sqlite_primary_key",
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			ErrDuplicate,
		},
		{
			"sqlite_check",
			sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck},
			ErrConstraint,
		},
		{"sqlite_cant_open", sqlite3.Error{Code: sqlite3.ErrCantOpen}, ErrConnection},
		{"sqlite_busy", sqlite3.Error{Code: sqlite3.ErrBusy}, ErrConnection},
		{"text_unique", errors.New("UNIQUE constraint failed: items.name"), ErrDuplicate},
		{"text_constraint", errors.New("CHECK constraint failed: qty"), ErrConstraint},
		{"text_conn_refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), ErrConnection},
		{"text_other", errors.New("no such table: missing"), ErrQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "the cause must stay reachable")
		})
	}
}

func TestClassify_Passthrough(t *testing.T) {
	assert.NoError(t, classify("op", nil))

	orig := wrapErr(ErrSchema, "create table items", errors.New("boom"))
	assert.Same(t, orig, classify("other op", orig))

	wrapped := fmt.Errorf("outer: %w", orig)
	assert.Same(t, wrapped, classify("other op", wrapped))
}

func TestPredicates(t *testing.T) {
	dup := wrapErr(ErrDuplicate, "insert", nil)
	constraint := wrapErr(ErrConstraint, "insert", nil)
	conn := wrapErr(ErrConnection, "open", nil)
	notFound := wrapErr(ErrNotFound, "one", nil)

	assert.True(t, IsDuplicate(dup))
	assert.False(t, IsDuplicate(constraint))

	assert.True(t, IsConstraint(constraint))
	assert.True(t, IsConstraint(dup), "duplicates are constraint violations")
	assert.False(t, IsConstraint(conn))

	assert.True(t, IsConnection(conn))
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(dup))
}

func TestDuplicate_Live(t *testing.T) {
	w := openTestDB(t)
	ctx := context.Background()
	_, err := w.Exec(ctx, `CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT UNIQUE);`)
	require.NoError(t, err)

	_, err = w.Insert(ctx, "users", map[string]any{"email": "a@example.com"})
	require.NoError(t, err)

	_, err = w.Insert(ctx, "users", map[string]any{"email": "a@example.com"})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err), "got %v", err)
	assert.True(t, IsConstraint(err))
}
