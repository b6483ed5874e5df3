package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/karyoview/internal/backup"
	"github.com/example/karyoview/internal/dbconn"
	"github.com/example/karyoview/internal/reconcile"
	"github.com/example/karyoview/internal/schema"
)

// Runner reads the persisted schema version, snapshots the database, and
// applies the registered version steps in order, each inside one
// transaction. A failed step rolls back and aborts the run; versions
// committed earlier in the same run remain, so a later invocation resumes
// from the persisted version.
type Runner struct {
	conn       *dbconn.Conn
	registry   *Registry
	backups    backup.Manager
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
	orphans    OrphanPolicy
}

// NewRunner wires a runner. The connection is exclusively owned by the
// runner for the duration of a run; callers must ensure no other writer is
// mutating the same tables mid-step.
func NewRunner(conn *dbconn.Conn, registry *Registry, backups backup.Manager, rec *reconcile.Reconciler, orphans OrphanPolicy, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		conn:       conn,
		registry:   registry,
		backups:    backups,
		reconciler: rec,
		logger:     logger,
		orphans:    orphans,
	}
}

// CurrentVersion reads the persisted schema version. The metadata table is
// created through the reconciler when absent; an empty table means
// version 0.
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if _, err := r.reconciler.Reconcile(ctx, r.conn.DB, schema.VersionTable()); err != nil {
		return 0, fmt.Errorf("failed to reconcile %s table: %w", schema.VersionTableName, err)
	}

	q := r.conn.Dialect.QuoteIdentifier
	var count int
	if err := r.conn.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", q(schema.VersionTableName))).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s rows: %w", schema.VersionTableName, err)
	}
	if count > 1 {
		return 0, fmt.Errorf("%w: found %d rows, expected at most one", ErrVersionTableCorrupt, count)
	}

	var version int
	err := r.conn.DB.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = 1", q("version"), q(schema.VersionTableName), q("id"))).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if version < 0 {
		return 0, fmt.Errorf("%w: negative version %d", ErrVersionTableCorrupt, version)
	}
	return version, nil
}

// UpgradeTo brings the database schema from its persisted version to the
// target version. The step registry is validated for the whole span before
// anything else runs, and a snapshot is taken unconditionally before the
// first step. Even when there is nothing to do, a no-op upgrade still
// snapshots.
func (r *Runner) UpgradeTo(ctx context.Context, target int) error {
	if target < 0 {
		return fmt.Errorf("invalid target version %d", target)
	}

	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if target < current {
		return fmt.Errorf("target version %d is below current version %d; downgrades are not supported", target, current)
	}

	r.logger.Info("migration run starting", "current", current, "target", target)

	// Configuration defects abort before any backup or DDL.
	if err := r.registry.Validate(current, target); err != nil {
		return err
	}

	location, err := r.backups.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("refusing to migrate without a backup: %w", err)
	}
	r.logger.Info("backup complete", "location", location)

	env := &Env{
		Dialect:    r.conn.Dialect,
		Reconciler: r.reconciler,
		Logger:     r.logger,
		Orphans:    r.orphans,
	}

	for v := current; v < target; v++ {
		step, ok := r.registry.Step(v)
		if !ok {
			return &MissingStepError{From: v}
		}

		started := time.Now()
		r.logger.Info("applying migration step", "from", v, "to", v+1, "description", step.Description())

		var result StepResult
		err := r.conn.WithTransaction(ctx, func(tx *sql.Tx) error {
			var stepErr error
			result, stepErr = step.Apply(ctx, tx, env)
			if stepErr != nil {
				return stepErr
			}
			return r.persistVersion(ctx, tx, v+1)
		})
		if err != nil {
			r.logger.Error("migration step failed, rolled back",
				"from", v, "to", v+1, "error", err)
			return &StepError{From: v, Err: err}
		}

		r.logger.Info("migration step committed",
			"version", v+1,
			"migrated", result.Migrated,
			"orphaned", result.Orphaned,
			"elapsed", time.Since(started))
	}

	r.logger.Info("migration run complete", "version", target)
	return nil
}

// persistVersion upserts the single schema_version row. The id column is
// always 1, so insert-or-replace keeps exactly one row.
func (r *Runner) persistVersion(ctx context.Context, tx *sql.Tx, version int) error {
	stmt := r.conn.Dialect.UpsertSQL(schema.VersionTableName, []string{"id", "version"})
	if _, err := tx.ExecContext(ctx, stmt, 1, version); err != nil {
		return fmt.Errorf("failed to persist schema version %d: %w", version, err)
	}
	return nil
}

// Status describes the migration state for reporting.
type Status struct {
	Current int
	Target  int
	Pending []string // descriptions of steps still to run
}

// Status reports the persisted version against the given target and the
// descriptions of the steps that would run.
func (r *Runner) Status(ctx context.Context, target int) (Status, error) {
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Current: current, Target: target}
	for v := current; v < target; v++ {
		if step, ok := r.registry.Step(v); ok {
			st.Pending = append(st.Pending, fmt.Sprintf("%d -> %d: %s", v, v+1, step.Description()))
		} else {
			st.Pending = append(st.Pending, fmt.Sprintf("%d -> %d: MISSING", v, v+1))
		}
	}
	return st, nil
}
