package reconcile

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/karyoview/internal/dialect"
	"github.com/example/karyoview/internal/schema"
)

// DB is the subset of database operations the reconciler needs. Both
// *sql.DB and *sql.Tx satisfy it, so migration steps can reconcile inside
// their own transaction.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result reports what a reconcile call did. The counts are informational
// only: logging material, never a correctness gate.
type Result struct {
	Created bool
	Added   int
	Dropped int
}

// Reconciler brings live tables into conformance with declared table
// definitions by issuing the minimal DDL: full creation for absent tables,
// per-column drops and adds otherwise. Reconciliation is idempotent.
type Reconciler struct {
	dialect dialect.Dialect
	logger  *slog.Logger
}

// New builds a reconciler for the given dialect.
func New(d dialect.Dialect, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{dialect: d, logger: logger}
}

// Reconcile compares the live shape of the declared table against its
// definition and applies the difference. Extra live columns are dropped
// before missing columns are added, so a later reconciliation never sees
// stale columns it expects to re-create. Any failing DDL statement aborts
// the call with a SchemaError.
func (r *Reconciler) Reconcile(ctx context.Context, db DB, table schema.Table) (Result, error) {
	live, exists, err := r.liveColumns(ctx, db, table.Name)
	if err != nil {
		return Result{}, err
	}

	if !exists {
		if err := r.createTable(ctx, db, table); err != nil {
			return Result{}, err
		}
		r.logger.Info("created table", "table", table.Name, "columns", len(table.Columns))
		return Result{Created: true, Added: len(table.Columns)}, nil
	}

	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}
	declared := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		declared[col.Name] = true
	}

	var result Result

	// Drops first, in live order.
	for _, name := range live {
		if declared[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
			r.dialect.QuoteIdentifier(table.Name), r.dialect.QuoteIdentifier(name))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return result, newSchemaError(table.Name, stmt, err)
		}
		r.logger.Info("dropped column", "table", table.Name, "column", name)
		result.Dropped++
	}

	// Adds in newly-declared order.
	var missing []schema.Column
	for _, col := range table.Columns {
		if !liveSet[col.Name] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		if err := r.addColumns(ctx, db, table.Name, missing); err != nil {
			return result, err
		}
		for _, col := range missing {
			r.logger.Info("added column", "table", table.Name, "column", col.Name)
		}
		result.Added = len(missing)
	}

	return result, nil
}

// liveColumns probes the table with a zero-row query and returns the live
// column names. A query error is taken as table absence; engines report
// missing tables differently and the subsequent CREATE is authoritative.
func (r *Reconciler) liveColumns(ctx context.Context, db DB, name string) ([]string, bool, error) {
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 0", r.dialect.QuoteIdentifier(name))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Debug("table probe failed, treating as absent", "table", name, "error", err)
		return nil, false, nil
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, false, newSchemaError(name, query, err)
	}
	if err := rows.Err(); err != nil {
		return nil, false, newSchemaError(name, query, err)
	}
	return columns, true, nil
}

// createTable emits a single CREATE TABLE with all declared columns.
func (r *Reconciler) createTable(ctx context.Context, db DB, table schema.Table) error {
	stmt, err := r.CreateTableSQL(table)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return newSchemaError(table.Name, stmt, err)
	}
	return nil
}

// CreateTableSQL renders the full CREATE TABLE statement for a definition.
func (r *Reconciler) CreateTableSQL(table schema.Table) (string, error) {
	defs := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		ddl, err := r.dialect.ColumnDDL(col)
		if err != nil {
			return "", err
		}
		defs = append(defs, ddl)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)",
		r.dialect.QuoteIdentifier(table.Name), strings.Join(defs, ", ")), nil
}

// addColumns adds the missing columns: one batched ALTER TABLE on dialects
// that support it, one statement per column otherwise. The result is
// equivalent either way.
func (r *Reconciler) addColumns(ctx context.Context, db DB, tableName string, missing []schema.Column) error {
	if r.dialect.SupportsBatchAlter() {
		clauses := make([]string, 0, len(missing))
		for _, col := range missing {
			ddl, err := r.dialect.ColumnDDL(col)
			if err != nil {
				return err
			}
			clauses = append(clauses, "ADD COLUMN "+ddl)
		}
		stmt := fmt.Sprintf("ALTER TABLE %s %s",
			r.dialect.QuoteIdentifier(tableName), strings.Join(clauses, ", "))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return newSchemaError(tableName, stmt, err)
		}
		return nil
	}

	for _, col := range missing {
		ddl, err := r.dialect.ColumnDDL(col)
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
			r.dialect.QuoteIdentifier(tableName), ddl)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return newSchemaError(tableName, stmt, err)
		}
	}
	return nil
}

// Drift reports, without mutating anything, which declared columns are
// missing from the live table and which live columns are extra. Used by
// the status command.
func (r *Reconciler) Drift(ctx context.Context, db DB, table schema.Table) (missing, extra []string, exists bool, err error) {
	live, exists, err := r.liveColumns(ctx, db, table.Name)
	if err != nil {
		return nil, nil, false, err
	}
	if !exists {
		return table.ColumnNames(), nil, false, nil
	}

	liveSet := make(map[string]bool, len(live))
	for _, name := range live {
		liveSet[name] = true
	}
	declared := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		declared[col.Name] = true
		if !liveSet[col.Name] {
			missing = append(missing, col.Name)
		}
	}
	for _, name := range live {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	return missing, extra, true, nil
}
