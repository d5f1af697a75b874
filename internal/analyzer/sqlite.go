package analyzer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqliteAnalyzer parses the text output of EXPLAIN QUERY PLAN. SQLite
// reports no cost or row estimates, only the access strategy.
type sqliteAnalyzer struct {
	db *sql.DB
}

func (a *sqliteAnalyzer) Explain(ctx context.Context, query string, args []any) (*Plan, error) {
	rows, err := a.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+query, args...)
	if err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		// id, parent, notused, detail
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("explain: %w", err)
		}
		lines = append(lines, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("explain: %w", err)
	}

	plan := &Plan{Backend: "sqlite", Raw: strings.Join(lines, "\n")}
	for _, line := range lines {
		parseSQLitePlanLine(line, plan)
	}
	return plan, nil
}

func (a *sqliteAnalyzer) ExplainAnalyze(context.Context, string, []any) (*Plan, error) {
	return nil, fmt.Errorf("sqlite has no EXPLAIN ANALYZE, use Explain")
}

// parseSQLitePlanLine reads one EXPLAIN QUERY PLAN detail line, such as
// "SEARCH users USING INDEX users_email (email=?)" or "SCAN users".
func parseSQLitePlanLine(line string, plan *Plan) {
	upper := strings.ToUpper(strings.TrimSpace(line))
	switch {
	case strings.Contains(upper, "USING COVERING INDEX"):
		plan.UsesIndex = true
		noteIndex(plan, wordAfter(line, "USING COVERING INDEX "))
	case strings.Contains(upper, "USING INDEX"):
		plan.UsesIndex = true
		noteIndex(plan, wordAfter(line, "USING INDEX "))
	case strings.Contains(upper, "USING INTEGER PRIMARY KEY"):
		plan.UsesIndex = true
		noteIndex(plan, "PRIMARY KEY")
	case strings.Contains(upper, "USING AUTOMATIC"):
		plan.UsesIndex = true
		noteIndex(plan, "AUTOMATIC INDEX")
	case strings.HasPrefix(upper, "SCAN "):
		plan.FullScan = true
	}
}

func noteIndex(plan *Plan, name string) {
	if plan.IndexName == "" && name != "" {
		plan.IndexName = name
	}
}

// wordAfter returns the word following marker, matched case
// insensitively, stopping at a space or parenthesis.
func wordAfter(s, marker string) string {
	idx := strings.Index(strings.ToUpper(s), strings.ToUpper(marker))
	if idx == -1 {
		return ""
	}
	rest := strings.TrimSpace(s[idx+len(marker):])
	for i, ch := range rest {
		if ch == ' ' || ch == '(' {
			return rest[:i]
		}
	}
	return rest
}
