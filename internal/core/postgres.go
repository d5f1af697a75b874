package core

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stratumdb/stratum/internal/security"
)

// PostgresConfig describes a PostgreSQL database. Zero-value fields fall
// back to the usual local defaults. URL, when set, is parsed first and
// the explicit fields override what it carries.
type PostgresConfig struct {
	Host     string // default localhost
	Port     int    // default 5432
	Database string
	User     string // default root
	Password string
	// Schema is the namespace used for metadata queries and set as the
	// connection's search_path. Default public.
	Schema string
	// SSLMode is passed through to the driver. Default disable.
	SSLMode string
	// Timezone is set as the connection's TimeZone parameter so every
	// session computes times in one zone. Default UTC.
	Timezone string
	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
	// URL is a postgres:// connection URL, an alternative to the
	// field-by-field form.
	URL string
	// Driver defaults to postgres.
	Driver    string
	QueryMode QueryMode
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.User == "" {
		c.User = "root"
	}
	if c.Schema == "" {
		c.Schema = "public"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	return c
}

// DSN renders the libpq key=value connection string.
func (c PostgresConfig) DSN() (string, error) {
	c = c.withDefaults()
	var parts []string
	if c.URL != "" {
		base, err := pq.ParseURL(c.URL)
		if err != nil {
			return "", wrapErr(ErrConnection, "parse url", err)
		}
		parts = append(parts, base)
	} else {
		parts = append(parts,
			"host="+escapeConnValue(c.Host),
			"port="+strconv.Itoa(c.Port),
			"user="+escapeConnValue(c.User),
			"sslmode="+escapeConnValue(c.SSLMode),
		)
		if c.Database != "" {
			parts = append(parts, "dbname="+escapeConnValue(c.Database))
		}
		if c.Password != "" {
			parts = append(parts, "password="+escapeConnValue(c.Password))
		}
	}

	// Later keys win in libpq, so these override URL-borne settings.
	parts = append(parts,
		"TimeZone="+escapeConnValue(c.Timezone),
		"search_path="+escapeConnValue(c.Schema),
	)
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		parts = append(parts, "connect_timeout="+strconv.Itoa(secs))
	}
	return strings.Join(parts, " "), nil
}

// escapeConnValue quotes a libpq connection value when it contains
// spaces, quotes, or is empty.
func escapeConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// OpenPostgres connects to PostgreSQL.
func OpenPostgres(cfg PostgresConfig, opts ...Option) (*Wrapper, error) {
	cfg = cfg.withDefaults()
	if err := cfg.QueryMode.Validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	database := cfg.Database
	if database == "" {
		database = "postgres"
	}
	meta := connMeta{database: database, schema: cfg.Schema, mode: cfg.QueryMode}
	return openWrapper(cfg.Driver, dsn, meta, opts...)
}

// LastInsertID reads the current value of the sequence behind a serial
// primary key, table_pk_seq. Backends whose driver reports insert ids
// directly should use the sql.Result instead.
func (w *Wrapper) LastInsertID(ctx context.Context, table, pk string) (int64, error) {
	if w.dialect.SupportsLastInsertID() {
		return 0, wrapErr(ErrState, "last insert id",
			fmt.Errorf("dialect %s reports insert ids through sql.Result", w.dialect.Name()))
	}
	if err := security.ValidateIdentifier(table); err != nil {
		return 0, wrapErr(ErrQuery, "last insert id", err)
	}
	if err := security.ValidateIdentifier(pk); err != nil {
		return 0, wrapErr(ErrQuery, "last insert id", err)
	}
	seq := w.dialect.QuoteIdentifier(fmt.Sprintf("%s_%s_seq", table, pk))
	row, err := w.FetchOne(ctx, "SELECT last_value FROM "+seq+";")
	if err != nil {
		return 0, err
	}
	if row == nil || row.Len() == 0 {
		return 0, wrapErr(ErrQuery, "last insert id", fmt.Errorf("sequence %s returned no rows", seq))
	}
	return row.Int64("last_value"), nil
}

// defaultFetchSize is the server cursor batch size when the caller does
// not pick one.
const defaultFetchSize = 1000

// serverCursorQuery runs a read statement through a PostgreSQL
// server-side cursor so only fetchSize rows are held in memory at a
// time. The cursor lives inside a transaction that pins one connection
// until the stream is closed.
func (w *Wrapper) serverCursorQuery(ctx context.Context, query string, args []any, fetchSize int) (*Cursor, error) {
	if err := w.guard("server cursor"); err != nil {
		return nil, err
	}
	if !w.dialect.SupportsServerCursor() {
		return nil, wrapErr(ErrState, "server cursor",
			fmt.Errorf("dialect %s has no server-side cursors", w.dialect.Name()))
	}
	if fetchSize <= 0 {
		fetchSize = defaultFetchSize
	}
	ctx = w.callCtx(ctx)

	src, err := openServerCursor(ctx, w, query, args, fetchSize)
	if err != nil {
		return nil, err
	}
	return newCursor(src, w.mode, nil), nil
}

// serverCursor streams DECLARE/FETCH batches as a rowSource.
type serverCursor struct {
	ctx   context.Context
	w     *Wrapper
	tx    *sql.Tx
	name  string
	fetch string
	cols  []string
	buf   [][]any
	pos   int
	done  bool
}

func openServerCursor(ctx context.Context, w *Wrapper, query string, args []any, fetchSize int) (*serverCursor, error) {
	inlined, err := inlineArgs(query, args)
	if err != nil {
		return nil, wrapErr(ErrQuery, "declare cursor", err)
	}
	inlined = strings.TrimSuffix(strings.TrimSpace(inlined), ";")

	tx, err := w.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("declare cursor", err)
	}
	name := w.dialect.QuoteIdentifier("stratum_cur_" + strings.ReplaceAll(uuid.NewString(), "-", ""))

	declare := "DECLARE " + name + " CURSOR FOR " + inlined
	started := time.Now()
	_, err = tx.ExecContext(ctx, declare)
	if err != nil {
		tx.Rollback()
		err = classify("declare cursor", err)
		w.observeCursorOp(ctx, declare, started, err)
		return nil, err
	}
	w.observeCursorOp(ctx, declare, started, nil)

	sc := &serverCursor{
		ctx:   ctx,
		w:     w,
		tx:    tx,
		name:  name,
		fetch: "FETCH FORWARD " + strconv.Itoa(fetchSize) + " FROM " + name,
	}
	if err := sc.fill(); err != nil {
		sc.release()
		return nil, err
	}
	return sc, nil
}

// fill reads the next batch. The first batch also captures the column
// names, which are unknown until the first FETCH returns.
func (sc *serverCursor) fill() error {
	started := time.Now()
	rows, err := sc.tx.QueryContext(sc.ctx, sc.fetch)
	if err != nil {
		err = classify("fetch from cursor", err)
		sc.w.observeCursorOp(sc.ctx, sc.fetch, started, err)
		return err
	}
	defer rows.Close()

	if sc.cols == nil {
		cols, err := rows.Columns()
		if err != nil {
			return classify("fetch from cursor", err)
		}
		sc.cols = cols
	}

	sc.buf = sc.buf[:0]
	sc.pos = 0
	for rows.Next() {
		vals, err := scanValues(rows, len(sc.cols))
		if err != nil {
			return classify("fetch from cursor", err)
		}
		sc.buf = append(sc.buf, vals)
	}
	if err := rows.Err(); err != nil {
		return classify("fetch from cursor", err)
	}
	if len(sc.buf) == 0 {
		sc.done = true
	}
	sc.w.observeCursorOp(sc.ctx, sc.fetch, started, nil)
	return nil
}

func (sc *serverCursor) Columns() []string { return sc.cols }

func (sc *serverCursor) Next() ([]any, error) {
	for {
		if sc.pos < len(sc.buf) {
			vals := sc.buf[sc.pos]
			sc.pos++
			return vals, nil
		}
		if sc.done {
			return nil, nil
		}
		if err := sc.fill(); err != nil {
			return nil, err
		}
	}
}

func (sc *serverCursor) Close() error {
	if sc.tx == nil {
		return nil
	}
	_, _ = sc.tx.ExecContext(sc.ctx, "CLOSE "+sc.name)
	err := sc.tx.Commit()
	sc.tx = nil
	if err != nil {
		return classify("close cursor", err)
	}
	return nil
}

func (sc *serverCursor) release() {
	if sc.tx != nil {
		sc.tx.Rollback()
		sc.tx = nil
	}
}

// observeCursorOp reports cursor protocol statements to the logger,
// hook, and execution log without going through the prepared path, since
// DECLARE and FETCH run on the pinned transaction.
func (w *Wrapper) observeCursorOp(ctx context.Context, query string, started time.Time, err error) {
	ctx, span := w.tracer.StartSpan(ctx, "stratum.cursor")
	defer span.End()
	w.finish(ctx, span, query, nil, started, 0, err)
}

// inlineArgs renders bound parameters into SQL literals. DECLARE is a
// utility statement in PostgreSQL and cannot carry bind parameters, so
// the cursor's query must arrive fully rendered. Values go through
// pq.QuoteLiteral or a typed rendering, never plain concatenation.
func inlineArgs(query string, args []any) (string, error) {
	if len(args) == 0 {
		return query, nil
	}
	var sb strings.Builder
	sb.Grow(len(query) + 16*len(args))
	for i := 0; i < len(query); {
		ch := query[i]
		if ch != '$' {
			sb.WriteByte(ch)
			i++
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			sb.WriteByte(ch)
			i++
			continue
		}
		n, err := strconv.Atoi(query[i+1 : j])
		if err != nil || n < 1 || n > len(args) {
			return "", fmt.Errorf("placeholder $%s out of range", query[i+1:j])
		}
		lit, err := literal(args[n-1])
		if err != nil {
			return "", err
		}
		sb.WriteString(lit)
		i = j
	}
	return sb.String(), nil
}

func literal(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(t), nil
	case int32:
		return strconv.FormatInt(int64(t), 10), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint:
		return strconv.FormatUint(uint64(t), 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case string:
		return pq.QuoteLiteral(t), nil
	case []byte:
		return `'\x` + hex.EncodeToString(t) + `'`, nil
	case time.Time:
		return pq.QuoteLiteral(t.Format(time.RFC3339Nano)), nil
	default:
		return "", fmt.Errorf("cannot inline %T into a cursor declaration", v)
	}
}
