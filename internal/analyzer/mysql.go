package analyzer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// mysqlAnalyzer parses EXPLAIN FORMAT=JSON output. ExplainAnalyze needs
// MySQL 8.0.18 or newer; older servers reject the statement themselves.
type mysqlAnalyzer struct {
	db *sql.DB
}

func (a *mysqlAnalyzer) Explain(ctx context.Context, query string, args []any) (*Plan, error) {
	var raw string
	if err := a.db.QueryRowContext(ctx, "EXPLAIN FORMAT=JSON "+query, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return parseMySQLExplain(raw)
}

func parseMySQLExplain(raw string) (*Plan, error) {
	var root myExplainRoot
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	plan := &Plan{Backend: "mysql", Raw: raw}
	if cost, err := strconv.ParseFloat(root.QueryBlock.CostInfo.QueryCost, 64); err == nil {
		plan.Cost = cost
	}
	walkMyBlock(&root.QueryBlock, plan)
	return plan, nil
}

func (a *mysqlAnalyzer) ExplainAnalyze(ctx context.Context, query string, args []any) (*Plan, error) {
	// EXPLAIN ANALYZE yields the TREE format as text, one row.
	var raw string
	if err := a.db.QueryRowContext(ctx, "EXPLAIN ANALYZE "+query, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("explain analyze: %w", err)
	}
	plan, err := a.Explain(ctx, query, args)
	if err != nil {
		return nil, err
	}
	plan.Raw = raw
	return plan, nil
}

type myExplainRoot struct {
	QueryBlock myQueryBlock `json:"query_block"`
}

type myQueryBlock struct {
	CostInfo myCostInfo      `json:"cost_info"`
	Table    *myTableAccess  `json:"table"`
	Nested   []myNestedTable `json:"nested_loop"`
	Grouping *myQueryBlock   `json:"grouping_operation"`
	Ordering *myQueryBlock   `json:"ordering_operation"`
}

// myNestedTable is one join step inside a nested_loop array.
type myNestedTable struct {
	Table *myTableAccess `json:"table"`
}

type myTableAccess struct {
	AccessType          string `json:"access_type"`
	Key                 string `json:"key"`
	RowsExaminedPerScan int64  `json:"rows_examined_per_scan"`
}

type myCostInfo struct {
	QueryCost string `json:"query_cost"`
}

func walkMyBlock(block *myQueryBlock, plan *Plan) {
	if block == nil {
		return
	}
	noteMyTable(block.Table, plan)
	for _, step := range block.Nested {
		noteMyTable(step.Table, plan)
	}
	walkMyBlock(block.Grouping, plan)
	walkMyBlock(block.Ordering, plan)
}

func noteMyTable(t *myTableAccess, plan *Plan) {
	if t == nil {
		return
	}
	plan.EstimatedRows += t.RowsExaminedPerScan
	// access_type ALL means a full table walk; anything keyed is an
	// index read except the degenerate const/system lookups.
	switch t.AccessType {
	case "ALL":
		plan.FullScan = true
	case "index", "range", "ref", "eq_ref", "const", "system":
		if t.Key != "" {
			plan.UsesIndex = true
			noteIndex(plan, t.Key)
		}
	}
}
