package core

import (
	"context"

	"github.com/stratumdb/stratum/internal/analyzer"
)

// Explain asks the backend for the execution plan of a caller-supplied
// query without running it. The plan shape is the same across backends;
// fields a backend cannot report stay zero.
func (w *Wrapper) Explain(ctx context.Context, query string, args ...any) (*analyzer.Plan, error) {
	if err := w.screen(query); err != nil {
		return nil, err
	}
	return w.explain(ctx, query, args, false)
}

// ExplainAnalyze executes the query and reports the measured plan.
// SQLite has no ANALYZE variant and returns an error here.
func (w *Wrapper) ExplainAnalyze(ctx context.Context, query string, args ...any) (*analyzer.Plan, error) {
	if err := w.screen(query); err != nil {
		return nil, err
	}
	return w.explain(ctx, query, args, true)
}

func (w *Wrapper) explain(ctx context.Context, query string, args []any, analyze bool) (*analyzer.Plan, error) {
	if err := w.guard("explain"); err != nil {
		return nil, err
	}
	a, err := analyzer.ForDialect(w.sqlDB, w.dialect.Name())
	if err != nil {
		return nil, wrapErr(ErrState, "explain", err)
	}
	ctx = w.callCtx(ctx)

	var plan *analyzer.Plan
	if analyze {
		plan, err = a.ExplainAnalyze(ctx, query, args)
	} else {
		plan, err = a.Explain(ctx, query, args)
	}
	if err != nil {
		return nil, classify("explain", err)
	}
	return plan, nil
}

// Explain reports the execution plan for the query the builder would
// run. The builder state is untouched; no cursor is opened.
func (b *QueryBuilder) Explain() (*analyzer.Plan, error) {
	if b.w == nil {
		return nil, wrapErr(ErrState, "explain", errNotBound())
	}
	query, args := b.Build()
	return b.w.explain(b.ctx, query, args, false)
}
