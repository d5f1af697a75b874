package core

import (
	"context"
	"fmt"

	"github.com/stratumdb/stratum/internal/security"
)

// Schema declares one managed table: its name and the CREATE TABLE
// statement that builds it. Statements should be written as CREATE TABLE
// IF NOT EXISTS so re-runs are harmless even without the existence check.
type Schema struct {
	Table  string
	Create string
}

// CreateSchemas creates every declared table that does not exist yet, in
// declaration order, and returns how many were created. Tables already
// created through this wrapper are remembered and skipped without a
// catalog round trip.
func (w *Wrapper) CreateSchemas(ctx context.Context) (int, error) {
	if err := w.guard("create schemas"); err != nil {
		return 0, err
	}
	created := 0
	for _, s := range w.schemas {
		ok, err := w.createSchema(ctx, s)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// CreateSchema creates the single declared table named table. It returns
// false with no error when the table already exists.
func (w *Wrapper) CreateSchema(ctx context.Context, table string) (bool, error) {
	if err := w.guard("create schema"); err != nil {
		return false, err
	}
	for _, s := range w.schemas {
		if s.Table == table {
			return w.createSchema(ctx, s)
		}
	}
	return false, wrapErr(ErrSchema, "create schema", fmt.Errorf("no schema declared for table %q", table))
}

func (w *Wrapper) createSchema(ctx context.Context, s Schema) (bool, error) {
	if err := security.ValidateIdentifier(s.Table); err != nil {
		return false, wrapErr(ErrSchema, "create schema", err)
	}
	if w.wasCreated(s.Table) {
		return false, nil
	}
	exists, err := w.TableExists(ctx, s.Table)
	if err != nil {
		return false, err
	}
	if exists {
		w.markCreated(s.Table)
		return false, nil
	}
	if _, err := w.exec(ctx, s.Create, nil); err != nil {
		return false, wrapErr(ErrSchema, "create table "+s.Table, err)
	}
	w.markCreated(s.Table)
	w.log.Info("table created", "database", w.database, "table", s.Table)
	return true, nil
}

// DropSchemas drops every declared table in reverse declaration order, so
// tables depending on earlier ones go first. Missing tables are skipped.
// It returns the names actually dropped.
func (w *Wrapper) DropSchemas(ctx context.Context) ([]string, error) {
	if err := w.guard("drop schemas"); err != nil {
		return nil, err
	}
	dropped := make([]string, 0, len(w.schemas))
	for i := len(w.schemas) - 1; i >= 0; i-- {
		ok, err := w.DropTable(ctx, w.schemas[i].Table)
		if err != nil {
			return dropped, err
		}
		if ok {
			dropped = append(dropped, w.schemas[i].Table)
		}
	}
	return dropped, nil
}

// DropTable drops one table if it exists, reporting whether it did.
func (w *Wrapper) DropTable(ctx context.Context, table string) (bool, error) {
	if err := w.guard("drop table"); err != nil {
		return false, err
	}
	if err := security.ValidateIdentifier(table); err != nil {
		return false, wrapErr(ErrSchema, "drop table", err)
	}
	exists, err := w.TableExists(ctx, table)
	if err != nil {
		return false, err
	}
	w.forgetCreated(table)
	if !exists {
		return false, nil
	}
	if _, err := w.exec(ctx, w.dialect.DropTableSQL(table, true), nil); err != nil {
		return false, wrapErr(ErrSchema, "drop table "+table, err)
	}
	w.log.Info("table dropped", "database", w.database, "table", table)
	return true, nil
}

// DropTables drops the given tables in order, returning the names that
// existed and were dropped.
func (w *Wrapper) DropTables(ctx context.Context, tables ...string) ([]string, error) {
	dropped := make([]string, 0, len(tables))
	for _, table := range tables {
		ok, err := w.DropTable(ctx, table)
		if err != nil {
			return dropped, err
		}
		if ok {
			dropped = append(dropped, table)
		}
	}
	return dropped, nil
}

// RecreateSchemas drops and recreates every declared table, returning the
// number created.
func (w *Wrapper) RecreateSchemas(ctx context.Context) (int, error) {
	if _, err := w.DropSchemas(ctx); err != nil {
		return 0, err
	}
	return w.CreateSchemas(ctx)
}

// Schemas returns the declared schemas in declaration order.
func (w *Wrapper) Schemas() []Schema {
	out := make([]Schema, len(w.schemas))
	copy(out, w.schemas)
	return out
}

func (w *Wrapper) createdKey(table string) string { return w.database + ":" + table }

func (w *Wrapper) wasCreated(table string) bool {
	w.createdMu.Lock()
	defer w.createdMu.Unlock()
	_, ok := w.created[w.createdKey(table)]
	return ok
}

func (w *Wrapper) markCreated(table string) {
	w.createdMu.Lock()
	defer w.createdMu.Unlock()
	w.created[w.createdKey(table)] = struct{}{}
}

func (w *Wrapper) forgetCreated(table string) {
	w.createdMu.Lock()
	defer w.createdMu.Unlock()
	delete(w.created, w.createdKey(table))
}
