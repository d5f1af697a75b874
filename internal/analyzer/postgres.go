package analyzer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// postgresAnalyzer parses EXPLAIN (FORMAT JSON) output.
type postgresAnalyzer struct {
	db *sql.DB
}

func (a *postgresAnalyzer) Explain(ctx context.Context, query string, args []any) (*Plan, error) {
	return a.explain(ctx, "EXPLAIN (FORMAT JSON) "+query, args, false)
}

func (a *postgresAnalyzer) ExplainAnalyze(ctx context.Context, query string, args []any) (*Plan, error) {
	return a.explain(ctx, "EXPLAIN (ANALYZE, FORMAT JSON) "+query, args, true)
}

func (a *postgresAnalyzer) explain(ctx context.Context, explainQuery string, args []any, analyzed bool) (*Plan, error) {
	var raw string
	if err := a.db.QueryRowContext(ctx, explainQuery, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	return parsePostgresExplain(raw, analyzed)
}

func parsePostgresExplain(raw string, analyzed bool) (*Plan, error) {
	var roots []pgExplainRoot
	if err := json.Unmarshal([]byte(raw), &roots); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("explain: empty output")
	}

	root := roots[0]
	plan := &Plan{
		Backend:       "postgres",
		Raw:           raw,
		Cost:          root.Plan.TotalCost,
		EstimatedRows: root.Plan.PlanRows,
	}
	walkPGNode(&root.Plan, plan, analyzed)
	if analyzed && root.ExecutionTime > 0 {
		plan.ActualTime = time.Duration(root.ExecutionTime * float64(time.Millisecond))
	}
	return plan, nil
}

type pgExplainRoot struct {
	Plan          pgExplainNode `json:"Plan"`
	ExecutionTime float64       `json:"Execution Time"`
}

type pgExplainNode struct {
	NodeType    string          `json:"Node Type"`
	IndexName   string          `json:"Index Name"`
	TotalCost   float64         `json:"Total Cost"`
	PlanRows    int64           `json:"Plan Rows"`
	ActualRows  int64           `json:"Actual Rows"`
	ActualLoops int64           `json:"Actual Loops"`
	Plans       []pgExplainNode `json:"Plans"`
}

func walkPGNode(node *pgExplainNode, plan *Plan, analyzed bool) {
	if strings.Contains(node.NodeType, "Index Scan") ||
		strings.Contains(node.NodeType, "Index Only Scan") ||
		strings.Contains(node.NodeType, "Bitmap Index Scan") {
		plan.UsesIndex = true
		noteIndex(plan, node.IndexName)
	}
	if node.NodeType == "Seq Scan" {
		plan.FullScan = true
	}
	if analyzed && node.ActualRows > 0 {
		loops := node.ActualLoops
		if loops < 1 {
			loops = 1
		}
		plan.ActualRows += node.ActualRows * loops
	}
	for i := range node.Plans {
		walkPGNode(&node.Plans[i], plan, analyzed)
	}
}
