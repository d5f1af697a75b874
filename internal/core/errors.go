package core

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
)

// Predefined error kinds returned by Stratum database operations.
// Wrapped errors match these with errors.Is.
var (
	// ErrConnection is returned when the database cannot be reached or the
	// session is lost mid-operation.
	ErrConnection = errors.New("connection error")
	// ErrQuery is returned when a statement fails to prepare, bind, or execute.
	ErrQuery = errors.New("query error")
	// ErrState is returned when an operation is called in the wrong lifecycle
	// state, such as executing a builder that is not bound to a database.
	ErrState = errors.New("invalid state")
	// ErrSchema is returned when a schema bootstrap operation fails.
	ErrSchema = errors.New("schema error")
	// ErrNotFound is returned when a lookup matches no rows.
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned when a wrapper is used after Close.
	ErrClosed = errors.New("database is closed")
	// ErrConstraint is returned on check, foreign key, and not-null violations.
	ErrConstraint = errors.New("constraint violation")
	// ErrDuplicate is returned on unique and primary key violations.
	ErrDuplicate = errors.New("duplicate key")
)

// Error carries an error kind, the operation that produced it, and the
// underlying driver error. It matches its kind and its cause with errors.Is.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// wrapErr builds an *Error. A nil cause is allowed for state errors that
// have no underlying driver failure.
func wrapErr(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify maps a driver error to an *Error with the most specific kind
// the driver exposes. Already classified errors pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return wrapErr(kindOf(err), op, err)
}

func kindOf(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return ErrConnection
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrQuery
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return postgresKind(string(pqErr.Code))
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlKind(myErr.Number)
	}
	if errors.Is(err, mysql.ErrInvalidConn) {
		return ErrConnection
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return sqliteKind(liteErr)
	}

	return stringKind(err)
}

func postgresKind(code string) error {
	switch {
	case code == pgerrcode.UniqueViolation:
		return ErrDuplicate
	case pgerrcode.IsIntegrityConstraintViolation(code):
		return ErrConstraint
	case pgerrcode.IsConnectionException(code),
		pgerrcode.IsInvalidAuthorizationSpecification(code),
		code == pgerrcode.InvalidCatalogName:
		return ErrConnection
	default:
		return ErrQuery
	}
}

func mysqlKind(number uint16) error {
	switch number {
	case 1062, 1586: // ER_DUP_ENTRY, ER_DUP_ENTRY_WITH_KEY_NAME
		return ErrDuplicate
	case 1048, 1216, 1217, 1451, 1452, 3819: // not-null, foreign key, check
		return ErrConstraint
	case 1040, 1044, 1045, 1049, 1129, 1130: // conn limit, access denied, unknown db, host blocked
		return ErrConnection
	default:
		return ErrQuery
	}
}

func sqliteKind(err sqlite3.Error) error {
	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintRowID:
		return ErrDuplicate
	}
	switch err.Code {
	case sqlite3.ErrConstraint:
		return ErrConstraint
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrBusy, sqlite3.ErrLocked:
		return ErrConnection
	default:
		return ErrQuery
	}
}

// stringKind covers drivers that only surface plain-text errors, such as
// the pure Go sqlite driver.
func stringKind(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "primary key constraint"):
		return ErrDuplicate
	case strings.Contains(msg, "constraint"):
		return ErrConstraint
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return ErrConnection
	default:
		return ErrQuery
	}
}

// IsNotFound reports whether err is a no-rows result.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsDuplicate reports whether err is a unique or primary key violation.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

// IsConstraint reports whether err is any integrity constraint violation,
// duplicates included.
func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraint) || errors.Is(err, ErrDuplicate)
}

// IsConnection reports whether err is a connectivity failure.
func IsConnection(err error) bool { return errors.Is(err, ErrConnection) }
