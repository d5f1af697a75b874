//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)

	"github.com/stratumdb/stratum"
)

// DatabaseSetup encapsulates database connection and cleanup.
type DatabaseSetup struct {
	DB        *stratum.DB
	Container testcontainers.Container
	Dialect   string
}

// Close cleans up database resources.
func (ds *DatabaseSetup) Close() {
	if ds.DB != nil {
		ds.DB.Close() //nolint:errcheck
	}
	if ds.Container != nil {
		ds.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

// SetupPostgreSQLTestDB creates a PostgreSQL test database.
// Uses testcontainers if available, falls back to env DSN.
func SetupPostgreSQLTestDB(t *testing.T, opts ...stratum.Option) *DatabaseSetup {
	ctx := context.Background()

	// Check for manual DSN first (allows testing without Docker)
	if dsn := os.Getenv("STRATUM_POSTGRES_TEST_DSN"); dsn != "" {
		db, err := stratum.Open("postgres", dsn, opts...)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, Dialect: "postgres"}
	}

	// Start PostgreSQL in Docker via testcontainers
	pgContainer, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := stratum.Open("postgres", dsn, opts...)
	require.NoError(t, err)

	return &DatabaseSetup{
		DB:        db,
		Container: pgContainer,
		Dialect:   "postgres",
	}
}

// SetupMySQLTestDB creates a MySQL test database.
// Uses testcontainers if available, falls back to env DSN.
func SetupMySQLTestDB(t *testing.T, opts ...stratum.Option) *DatabaseSetup {
	ctx := context.Background()

	// Check for manual DSN first
	if dsn := os.Getenv("STRATUM_MYSQL_TEST_DSN"); dsn != "" {
		// parseTime=true turns DATETIME columns into time.Time values
		if !strings.Contains(dsn, "parseTime=true") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		db, err := stratum.Open("mysql", dsn, opts...)
		require.NoError(t, err)
		return &DatabaseSetup{DB: db, Dialect: "mysql"}
	}

	// Start MySQL in Docker via testcontainers
	mysqlContainer, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}

	dsn, err := mysqlContainer.ConnectionString(ctx)
	require.NoError(t, err)
	dsn += "?parseTime=true"

	db, err := stratum.Open("mysql", dsn, opts...)
	require.NoError(t, err)

	return &DatabaseSetup{
		DB:        db,
		Container: mysqlContainer,
		Dialect:   "mysql",
	}
}

// SetupSQLiteTestDB creates an in-memory SQLite database.
// Always works, no external dependencies.
func SetupSQLiteTestDB(t *testing.T, opts ...stratum.Option) *DatabaseSetup {
	opts = append([]stratum.Option{
		stratum.WithMaxOpenConns(1),
		stratum.WithMaxIdleConns(1),
	}, opts...)
	db, err := stratum.Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)

	return &DatabaseSetup{
		DB:      db,
		Dialect: "sqlite",
	}
}

// CreateInventoryTable creates the items table used by the shared suite.
func CreateInventoryTable(t *testing.T, db *stratum.DB, dialect string) {
	var createSQL string

	switch dialect {
	case "postgres":
		createSQL = `
			CREATE TABLE IF NOT EXISTS items (
				id SERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				qty INTEGER,
				warehouse TEXT
			)
		`
	case "mysql":
		createSQL = `
			CREATE TABLE IF NOT EXISTS items (
				id INT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				qty INT,
				warehouse VARCHAR(255)
			)
		`
	case "sqlite":
		createSQL = `
			CREATE TABLE IF NOT EXISTS items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				qty INTEGER,
				warehouse TEXT
			)
		`
	}

	_, err := db.Exec(context.Background(), createSQL)
	require.NoError(t, err)
}

// CreateUsersTable creates a users table with a unique email column.
func CreateUsersTable(t *testing.T, db *stratum.DB, dialect string) {
	var createSQL string

	switch dialect {
	case "postgres":
		createSQL = `
			CREATE TABLE IF NOT EXISTS users (
				id SERIAL PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				address VARCHAR(255)
			)
		`
	case "mysql":
		createSQL = `
			CREATE TABLE IF NOT EXISTS users (
				id INT AUTO_INCREMENT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				address VARCHAR(255)
			)
		`
	case "sqlite":
		createSQL = `
			CREATE TABLE IF NOT EXISTS users (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) UNIQUE NOT NULL,
				address VARCHAR(255)
			)
		`
	}

	_, err := db.Exec(context.Background(), createSQL)
	require.NoError(t, err)
}

// InsertTestItems seeds count rows spread over a few warehouses.
func InsertTestItems(t *testing.T, db *stratum.DB, count int) {
	ctx := context.Background()
	for i := 1; i <= count; i++ {
		var warehouse any
		if i%5 != 0 {
			warehouse = fmt.Sprintf("wh-%d", i%3)
		}
		_, err := db.Insert(ctx, "items", map[string]any{
			"name":      fmt.Sprintf("item-%d", i),
			"qty":       i % 20,
			"warehouse": warehouse,
		})
		require.NoError(t, err)
	}
}

// InsertTestUsers seeds count users with unique emails.
func InsertTestUsers(t *testing.T, db *stratum.DB, count int) {
	ctx := context.Background()
	for i := 1; i <= count; i++ {
		var address any
		if i%2 == 0 {
			address = fmt.Sprintf("%d Main St", i)
		}
		_, err := db.Insert(ctx, "users", map[string]any{
			"name":    fmt.Sprintf("user-%d", i),
			"email":   fmt.Sprintf("user%d@example.com", i),
			"address": address,
		})
		require.NoError(t, err)
	}
}
