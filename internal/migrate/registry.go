package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/example/karyoview/internal/dialect"
	"github.com/example/karyoview/internal/reconcile"
)

// OrphanPolicy decides what happens to a dependent row whose foreign
// identity has no mapping entry during a data migration.
type OrphanPolicy int

const (
	// SkipOrphans drops the row with a warning and keeps going. This
	// preserves the historically observed behavior.
	SkipOrphans OrphanPolicy = iota

	// FailOnOrphans aborts the step instead, rolling it back.
	FailOnOrphans
)

// Env is what a migration step gets to work with inside its transaction.
type Env struct {
	Dialect    dialect.Dialect
	Reconciler *reconcile.Reconciler
	Logger     *slog.Logger
	Orphans    OrphanPolicy
}

// StepResult reports row-level outcomes of one step, for logging.
type StepResult struct {
	Migrated int
	Orphaned int
}

// Step is one schema-version transition: it restructures tables and
// transforms rows inside the transaction it is handed, taking the database
// from From() to From()+1. Steps never commit or roll back themselves.
type Step interface {
	From() int
	Description() string
	Apply(ctx context.Context, tx *sql.Tx, env *Env) (StepResult, error)
}

// Registry holds the registered steps keyed by their from-version. It is
// assembled at startup, so a missing step is a startup-detectable
// configuration error rather than a runtime dispatch failure.
type Registry struct {
	steps map[int]Step
}

// NewRegistry builds a registry, rejecting duplicate from-versions.
func NewRegistry(steps ...Step) (*Registry, error) {
	byFrom := make(map[int]Step, len(steps))
	for _, s := range steps {
		if s.From() < 0 {
			return nil, fmt.Errorf("migration step from negative version %d", s.From())
		}
		if _, dup := byFrom[s.From()]; dup {
			return nil, fmt.Errorf("duplicate migration step for version %d -> %d", s.From(), s.From()+1)
		}
		byFrom[s.From()] = s
	}
	return &Registry{steps: byFrom}, nil
}

// DefaultRegistry returns the registry carrying every historical step this
// build knows about.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(stepV1{}, stepV2{})
	if err != nil {
		// Duplicate from-versions in the built-in step list is a
		// programming error.
		panic(err)
	}
	return r
}

// Step looks up the step bridging from -> from+1.
func (r *Registry) Step(from int) (Step, bool) {
	s, ok := r.steps[from]
	return s, ok
}

// Validate checks that every transition from current to target has a
// registered step. Gaps are never silently skipped.
func (r *Registry) Validate(current, target int) error {
	for v := current; v < target; v++ {
		if _, ok := r.steps[v]; !ok {
			return &MissingStepError{From: v}
		}
	}
	return nil
}
