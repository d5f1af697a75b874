package benchmark

import (
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stratumdb/stratum"
)

type benchItem struct {
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Qty   int64   `db:"qty"`
	Price float64 `db:"price"`
}

// BenchmarkRowAccess measures keyed column lookups on a fetched row.
func BenchmarkRowAccess(b *testing.B) {
	db := setupBenchDB(b, 10)

	row, err := db.Builder("items").Where("name", "item-3").Fetch()
	if err != nil || row == nil {
		b.Fatalf("fetch: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = row.String("name")
		_ = row.Int64("qty")
		_ = row.Float64("price")
		_ = row.IsNull("id")
	}
}

// BenchmarkScanOne measures reflection-based scanning into a struct.
func BenchmarkScanOne(b *testing.B) {
	db := setupBenchDB(b, 100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var it benchItem
		if err := db.Builder("items").Where("name", "item-42").One(&it); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkScanAll_100rows measures scanning a slice of structs.
func BenchmarkScanAll_100rows(b *testing.B) {
	db := setupBenchDB(b, 100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var items []benchItem
		if err := db.Builder("items").AllInto(&items); err != nil {
			b.Fatal(err)
		}
		if len(items) != 100 {
			b.Fatalf("got %d items", len(items))
		}
	}
}

// BenchmarkBindNamed measures named parameter expansion alone.
func BenchmarkBindNamed(b *testing.B) {
	db := setupBenchDB(b, 0)

	params := stratum.Params{"name": "item-1", "qty": 5}
	query := "SELECT * FROM items WHERE name = {:name} AND qty > {:qty}"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := db.BindNamed(query, params); err != nil {
			b.Fatal(err)
		}
	}
}
