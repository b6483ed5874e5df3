package dialect

import (
	"errors"
	"fmt"

	"github.com/example/karyoview/internal/schema"
)

// ErrUnsupportedType indicates that a declared column has no equivalent in
// the target dialect. This is a configuration-time defect: the run must
// abort before any backup or DDL.
var ErrUnsupportedType = errors.New("unsupported column type for dialect")

// UnsupportedTypeError carries the dialect and column that could not be
// rendered.
type UnsupportedTypeError struct {
	Dialect string
	Column  string
	Kind    schema.Kind
	Reason  string
}

// Error implements the error interface.
func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("dialect %s cannot express column %s (%s): %s", e.Dialect, e.Column, e.Kind, e.Reason)
}

// Unwrap returns the sentinel so callers can match with errors.Is.
func (e *UnsupportedTypeError) Unwrap() error {
	return ErrUnsupportedType
}

// Dialect translates dialect-neutral schema descriptions into
// engine-specific SQL fragments. Implementations are pure: they never touch
// a live connection. One implementation is selected at startup and injected
// into the reconciler, the migration runner and the backup manager.
type Dialect interface {
	// Name identifies the dialect ("mysql" or "sqlite").
	Name() string

	// ColumnDDL renders one column definition, modifiers included.
	ColumnDDL(col schema.Column) (string, error)

	// AutoIncrementClause is the keyword marking a database-assigned
	// integer column.
	AutoIncrementClause() string

	// LastInsertIDExpr is the SQL function returning the last
	// database-assigned id on the current connection.
	LastInsertIDExpr() string

	// CurrentTimestampExpr is the SQL expression for the current time.
	CurrentTimestampExpr() string

	// UpsertSQL builds an insert-or-replace statement with one placeholder
	// per column.
	UpsertSQL(table string, columns []string) string

	// RenameTableSQL builds the statement renaming a table.
	RenameTableSQL(old, new string) string

	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string

	// SupportsBatchAlter reports whether several ADD COLUMN clauses may be
	// combined into a single ALTER TABLE statement.
	SupportsBatchAlter() bool
}

// ForDriver returns the dialect matching a database/sql driver name.
func ForDriver(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL{}, nil
	case "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("no dialect registered for driver %q", driver)
	}
}
