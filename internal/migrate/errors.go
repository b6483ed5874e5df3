package migrate

import (
	"errors"
	"fmt"
)

// Migration-specific error kinds for the distinct failure scenarios.
var (
	// ErrMissingStep indicates a gap in the registered step sequence, a
	// fatal configuration defect detected before any backup or DDL.
	ErrMissingStep = errors.New("missing migration step")

	// ErrDataMigration indicates a row transform or foreign-key remap
	// failed mid-step.
	ErrDataMigration = errors.New("data migration failed")

	// ErrOrphanedRow indicates a dependent row whose foreign identity has
	// no mapping. Under the default policy it is logged and the row is
	// dropped; under the fail policy it aborts the step.
	ErrOrphanedRow = errors.New("orphaned row")

	// ErrVersionTableCorrupt indicates the schema_version table does not
	// hold the single well-formed row it must.
	ErrVersionTableCorrupt = errors.New("schema_version table is corrupted")
)

// MissingStepError names the transition with no registered step.
type MissingStepError struct {
	From int
}

// Error implements the error interface.
func (e *MissingStepError) Error() string {
	return fmt.Sprintf("no migration step registered for version %d -> %d", e.From, e.From+1)
}

// Unwrap returns the sentinel so callers can match with errors.Is.
func (e *MissingStepError) Unwrap() error {
	return ErrMissingStep
}

// StepError wraps a failure inside one version transition. The message
// names the transition and the version the database remains at, since the
// run is safely resumable from there.
type StepError struct {
	From int
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("migration %d -> %d failed, database remains at version %d: %v",
		e.From, e.From+1, e.From, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// DataError wraps a row-level failure with the table being migrated.
type DataError struct {
	Table string
	Err   error
}

// Error implements the error interface.
func (e *DataError) Error() string {
	return fmt.Sprintf("data migration of table %s failed: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *DataError) Unwrap() error {
	return e.Err
}

// Is matches both the sentinel and the wrapped error.
func (e *DataError) Is(target error) bool {
	return target == ErrDataMigration || errors.Is(e.Err, target)
}
