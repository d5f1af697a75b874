package benchmark

import (
	"context"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stratumdb/stratum"
)

// setupBenchDB opens an in-memory SQLite database seeded with n items.
func setupBenchDB(b *testing.B, n int) *stratum.DB {
	b.Helper()
	db, err := stratum.Open("sqlite", ":memory:",
		stratum.WithMaxOpenConns(1),
		stratum.WithMaxIdleConns(1),
		stratum.WithSchema("items", `
			CREATE TABLE items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				qty INTEGER,
				price REAL
			)
		`))
	if err != nil {
		b.Fatalf("open database: %v", err)
	}
	b.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := db.Exec(ctx,
			"INSERT INTO items (name, qty, price) VALUES (?, ?, ?)",
			fmt.Sprintf("item-%d", i), i%50, float64(i)*0.01)
		if err != nil {
			b.Fatalf("seed row %d: %v", i, err)
		}
	}
	return db
}

// BenchmarkBuildSQL measures clause assembly alone, no execution.
func BenchmarkBuildSQL(b *testing.B) {
	db := setupBenchDB(b, 0)

	b.Run("SimpleWhere", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = db.Builder("items").Where("name", "item-1").Build()
		}
	})

	b.Run("MultiClause", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_, _ = db.Builder("items").
				Select("name", "qty").
				Where("qty", 10).
				OrWhereOp("price", ">", 1.5).
				GroupBy("name").
				OrderDesc("qty").
				Limit(20).
				Offset(40).
				Build()
		}
	})

	b.Run("WhereIn_10values", func(b *testing.B) {
		vals := make([]any, 10)
		for i := range vals {
			vals[i] = i
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = db.Builder("items").WhereIn("qty", vals...).Build()
		}
	})
}

// BenchmarkBuilderAll_100rows measures a full query cycle returning 100 rows.
func BenchmarkBuilderAll_100rows(b *testing.B) {
	db := setupBenchDB(b, 1000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rows, err := db.Builder("items").Limit(100).All()
		if err != nil {
			b.Fatal(err)
		}
		if len(rows) != 100 {
			b.Fatalf("got %d rows", len(rows))
		}
	}
}

// BenchmarkEach_1000rows measures streaming consumption of a large result.
func BenchmarkEach_1000rows(b *testing.B) {
	db := setupBenchDB(b, 1000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		count := 0
		err := db.Builder("items").Each(func(row stratum.Row) error {
			count++
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
		if count != 1000 {
			b.Fatalf("got %d rows", count)
		}
	}
}

// BenchmarkFetchOne measures the single-row helper path.
func BenchmarkFetchOne(b *testing.B) {
	db := setupBenchDB(b, 100)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		row, err := db.FetchOne(ctx, "SELECT * FROM items WHERE name = ?", "item-42")
		if err != nil {
			b.Fatal(err)
		}
		if row == nil {
			b.Fatal("row not found")
		}
	}
}
