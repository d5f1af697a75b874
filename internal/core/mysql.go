package core

import (
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConfig describes a MySQL or MariaDB database.
type MySQLConfig struct {
	Host     string // default localhost
	Port     int    // default 3306
	Database string
	User     string // default root
	Password string
	// ParseTime scans DATETIME columns into time.Time. Defaults to on;
	// set ParseTimeOff to disable.
	ParseTimeOff bool
	// Timeout bounds connection establishment.
	Timeout time.Duration
	// Params are extra DSN parameters passed to the driver.
	Params    map[string]string
	Driver    string // default mysql
	QueryMode QueryMode
}

func (c MySQLConfig) withDefaults() MySQLConfig {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.User == "" {
		c.User = "root"
	}
	if c.Driver == "" {
		c.Driver = "mysql"
	}
	return c
}

// DSN renders the driver connection string through mysql.Config, so
// quoting and defaults stay aligned with the driver.
func (c MySQLConfig) DSN() (string, error) {
	c = c.withDefaults()
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = c.Host + ":" + strconv.Itoa(c.Port)
	mc.DBName = c.Database
	mc.ParseTime = !c.ParseTimeOff
	mc.Timeout = c.Timeout
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN(), nil
}

// OpenMySQL connects to MySQL.
func OpenMySQL(cfg MySQLConfig, opts ...Option) (*Wrapper, error) {
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
		database = "mysql"
	}
	meta := connMeta{database: database, mode: cfg.QueryMode}
	return openWrapper(cfg.Driver, dsn, meta, opts...)
}
