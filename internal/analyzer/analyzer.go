// Package analyzer turns backend EXPLAIN output into one Plan shape, so
// callers can check index usage and cost without parsing three formats.
package analyzer

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Plan is a unified view of a query execution plan. Fields a backend
// does not report stay zero; Raw always carries the full EXPLAIN output.
type Plan struct {
	// Cost is the estimated total cost in backend-specific units.
	Cost float64
	// EstimatedRows is the planner's row estimate.
	EstimatedRows int64
	// ActualRows is the measured row count, ExplainAnalyze only.
	ActualRows int64
	// ActualTime is the measured execution time, ExplainAnalyze only.
	ActualTime time.Duration
	// UsesIndex reports whether any plan node reads an index.
	UsesIndex bool
	// IndexName is the first index the plan uses.
	IndexName string
	// FullScan reports whether any plan node walks a whole table.
	FullScan bool
	// Raw is the unparsed EXPLAIN output.
	Raw string
	// Backend is the dialect that produced the plan.
	Backend string
}

// Analyzer explains queries for one backend.
type Analyzer interface {
	// Explain estimates the plan without running the query.
	Explain(ctx context.Context, query string, args []any) (*Plan, error)
	// ExplainAnalyze runs the query and reports measured metrics. Not
	// every backend supports it.
	ExplainAnalyze(ctx context.Context, query string, args []any) (*Plan, error)
}

// ForDialect returns the analyzer matching a dialect name.
func ForDialect(db *sql.DB, dialectName string) (Analyzer, error) {
	switch dialectName {
	case "postgres", "postgresql":
		return &postgresAnalyzer{db: db}, nil
	case "mysql":
		return &mysqlAnalyzer{db: db}, nil
	case "sqlite", "sqlite3":
		return &sqliteAnalyzer{db: db}, nil
	}
	return nil, fmt.Errorf("no analyzer for dialect %q", dialectName)
}
