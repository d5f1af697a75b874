package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SQLiteConfig describes a SQLite database. The zero value opens the
// default database file under the user's home directory with the mattn
// driver. Set Driver to "sqlite" to use the pure Go driver instead; the
// DSN adapts to whichever is chosen.
type SQLiteConfig struct {
	// Path is the database file. Defaults to DefaultSQLitePath() and
	// supports a leading ~/.
	Path string
	// Memory opens an in-memory database instead of a file.
	Memory bool
	// MemoryShared makes the in-memory database visible to every
	// connection in the pool. Implies Memory. Without it each pooled
	// connection would see its own empty database.
	MemoryShared bool
	// Timeout is the busy handler timeout while the database is locked
	// by another connection. Defaults to 30 seconds; negative disables.
	Timeout time.Duration
	// Driver is sqlite3 (cgo, default) or sqlite (pure Go).
	Driver string
	// QueryMode keys result rows by column name (dict, default) or
	// leaves them positional (flat).
	QueryMode QueryMode
}

const defaultSQLiteTimeout = 30 * time.Second

// DefaultSQLitePath returns the default database file,
// ~/.stratum/stratum.db.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".stratum", "stratum.db")
	}
	return filepath.Join(home, ".stratum", "stratum.db")
}

func (c SQLiteConfig) withDefaults() SQLiteConfig {
	if c.MemoryShared {
		c.Memory = true
	}
	if c.Driver == "" {
		c.Driver = "sqlite3"
	}
	if c.Timeout == 0 {
		c.Timeout = defaultSQLiteTimeout
	}
	if c.Path == "" && !c.Memory {
		c.Path = DefaultSQLitePath()
	}
	if strings.HasPrefix(c.Path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Path = filepath.Join(home, c.Path[2:])
		}
	}
	return c
}

// DSN renders the driver-specific connection string.
func (c SQLiteConfig) DSN() (string, error) {
	c = c.withDefaults()
	var params []string
	if c.MemoryShared {
		params = append(params, "cache=shared")
	}
	if c.Timeout > 0 {
		ms := int(c.Timeout / time.Millisecond)
		switch c.Driver {
		case "sqlite":
			params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", ms))
		default:
			params = append(params, fmt.Sprintf("_busy_timeout=%d", ms))
		}
	}

	base := "file:" + c.Path
	if c.Memory {
		base = "file::memory:"
	}
	if len(params) == 0 {
		if c.Memory {
			return ":memory:", nil
		}
		return c.Path, nil
	}
	return base + "?" + strings.Join(params, "&"), nil
}

func (c SQLiteConfig) databaseName() string {
	if c.Memory {
		return ":memory:"
	}
	return filepath.Base(c.Path)
}

// OpenSQLite opens a SQLite database, creating the parent directory of
// the database file when needed.
func OpenSQLite(cfg SQLiteConfig, opts ...Option) (*Wrapper, error) {
	cfg = cfg.withDefaults()
	if err := cfg.QueryMode.Validate(); err != nil {
		return nil, err
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	if !cfg.Memory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, wrapErr(ErrConnection, "open "+cfg.databaseName(), err)
		}
	}
	if cfg.Memory && !cfg.MemoryShared {
		// A private in-memory database exists per connection. Pin the
		// pool to one so every statement sees the same database.
		opts = append(opts, WithMaxOpenConns(1), WithMaxIdleConns(1))
	}
	meta := connMeta{database: cfg.databaseName(), mode: cfg.QueryMode}
	return openWrapper(cfg.Driver, dsn, meta, opts...)
}
