package reconcile

import (
	"errors"
	"fmt"
)

// ErrSchema indicates that a DDL statement failed while reconciling a
// table. The reconcile call that hit it aborts and the caller decides
// whether the failure is fatal.
var ErrSchema = errors.New("schema reconciliation failed")

// SchemaError wraps a failed DDL statement with the table and statement
// that produced it.
type SchemaError struct {
	Table     string
	Statement string
	Err       error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error on table %s: %s: %v", e.Table, e.Statement, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Is matches both the sentinel and the wrapped driver error.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema || errors.Is(e.Err, target)
}

func newSchemaError(table, statement string, err error) *SchemaError {
	return &SchemaError{Table: table, Statement: statement, Err: err}
}
