//go:build integration
// +build integration

package test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratumdb/stratum"
)

// TestExplain_MySQL parses real EXPLAIN FORMAT=JSON output.
func TestExplain_MySQL(t *testing.T) {
	setup := SetupMySQLTestDB(t)
	defer setup.Close()

	CreateUsersTable(t, setup.DB, setup.Dialect)

	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		_, err := setup.DB.Insert(ctx, "users", map[string]any{
			"name":  fmt.Sprintf("user-%d", i),
			"email": fmt.Sprintf("user%d@example.com", i),
		})
		require.NoError(t, err)
	}
	_, err := setup.DB.Exec(ctx, "ANALYZE TABLE users")
	require.NoError(t, err)

	plan, err := setup.DB.Explain(ctx,
		"SELECT * FROM users WHERE email = ?", "user500@example.com")
	require.NoError(t, err)
	assert.Equal(t, "mysql", plan.Backend)
	assert.Greater(t, plan.Cost, 0.0)
	assert.True(t, plan.UsesIndex, "unique equality should use the email index")
	assert.False(t, plan.FullScan)

	plan, err = setup.DB.Explain(ctx,
		"SELECT * FROM users WHERE name = ?", "user-500")
	require.NoError(t, err)
	assert.True(t, plan.FullScan, "unindexed column should scan")
}

// TestExplainAnalyze_MySQL captures the TREE-format runtime plan text.
func TestExplainAnalyze_MySQL(t *testing.T) {
	setup := SetupMySQLTestDB(t)
	defer setup.Close()

	CreateInventoryTable(t, setup.DB, setup.Dialect)
	InsertTestItems(t, setup.DB, 20)

	plan, err := setup.DB.ExplainAnalyze(context.Background(),
		"SELECT * FROM items WHERE qty > ?", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Raw)
	assert.Greater(t, plan.Cost, 0.0)
}

// TestLastInsertID_MySQLUsesResult confirms the sequence helper refuses
// MySQL, where sql.Result already carries the generated id.
func TestLastInsertID_MySQLUsesResult(t *testing.T) {
	setup := SetupMySQLTestDB(t)
	defer setup.Close()

	CreateUsersTable(t, setup.DB, setup.Dialect)

	ctx := context.Background()
	res, err := setup.DB.Insert(ctx, "users", map[string]any{
		"name":  "Ann",
		"email": "ann@example.com",
	})
	require.NoError(t, err)

	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = setup.DB.LastInsertID(ctx, "users", "id")
	assert.ErrorIs(t, err, stratum.ErrState)
}

// TestTimeParsing_MySQL checks DATETIME columns come back as time.Time
// under parseTime=true.
func TestTimeParsing_MySQL(t *testing.T) {
	setup := SetupMySQLTestDB(t)
	defer setup.Close()

	ctx := context.Background()
	_, err := setup.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id INT AUTO_INCREMENT PRIMARY KEY,
			started_at DATETIME NOT NULL
		)
	`)
	require.NoError(t, err)

	_, err = setup.DB.Exec(ctx,
		"INSERT INTO sessions (started_at) VALUES ('2024-05-01 12:30:00')")
	require.NoError(t, err)

	row, err := setup.DB.FetchOne(ctx, "SELECT started_at FROM sessions")
	require.NoError(t, err)
	require.NotNil(t, row)

	ts := row.Time("started_at")
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, 12, ts.Hour())
}
