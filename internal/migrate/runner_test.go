package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/karyoview/internal/dbconn"
	"github.com/example/karyoview/internal/reconcile"
	"github.com/example/karyoview/internal/schema"
)

func testConn(t *testing.T) *dbconn.Conn {
	t.Helper()

	conn, err := dbconn.Open(dbconn.Descriptor{Driver: "sqlite", DSN: ":memory:", Path: "accounts.db"})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackup stands in for a snapshot manager and records invocations.
type fakeBackup struct {
	calls int
	err   error
}

func (f *fakeBackup) Snapshot(ctx context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/backups/accounts.db_29Aug2026.10:00", nil
}

// fakeStep records its application order and can run DDL inside the step
// transaction or fail on demand.
type fakeStep struct {
	from    int
	ddl     string
	failErr error
	applied *[]int
}

func (s fakeStep) From() int           { return s.from }
func (s fakeStep) Description() string { return fmt.Sprintf("test step %d", s.from) }

func (s fakeStep) Apply(ctx context.Context, tx *sql.Tx, env *Env) (StepResult, error) {
	if s.applied != nil {
		*s.applied = append(*s.applied, s.from)
	}
	if s.ddl != "" {
		if _, err := tx.ExecContext(ctx, s.ddl); err != nil {
			return StepResult{}, err
		}
	}
	if s.failErr != nil {
		return StepResult{}, s.failErr
	}
	return StepResult{Migrated: 1}, nil
}

func newTestRunner(t *testing.T, conn *dbconn.Conn, backups *fakeBackup, steps ...Step) *Runner {
	t.Helper()

	registry, err := NewRegistry(steps...)
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	logger := testLogger()
	return NewRunner(conn, registry, backups, reconcile.New(conn.Dialect, logger), SkipOrphans, logger)
}

func TestCurrentVersion_FreshDatabase(t *testing.T) {
	conn := testConn(t)
	r := newTestRunner(t, conn, &fakeBackup{})

	version, err := r.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Fatalf("expected version 0 on a fresh database, got %d", version)
	}

	// The metadata table must now exist, still holding no row.
	var count int
	err = conn.DB.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&count)
	if err != nil {
		t.Fatalf("schema_version table was not created: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty schema_version table, found %d rows", count)
	}
}

func TestCurrentVersion_MultipleRowsIsCorrupt(t *testing.T) {
	conn := testConn(t)
	r := newTestRunner(t, conn, &fakeBackup{})
	ctx := context.Background()

	if _, err := r.CurrentVersion(ctx); err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	for _, row := range [][2]int{{1, 1}, {2, 5}} {
		if _, err := conn.DB.Exec("INSERT INTO schema_version (id, version) VALUES (?, ?)", row[0], row[1]); err != nil {
			t.Fatalf("failed to seed schema_version: %v", err)
		}
	}

	_, err := r.CurrentVersion(ctx)
	if !errors.Is(err, ErrVersionTableCorrupt) {
		t.Fatalf("expected ErrVersionTableCorrupt, got %v", err)
	}
}

func TestUpgradeTo_AppliesStepsInOrder(t *testing.T) {
	conn := testConn(t)
	backups := &fakeBackup{}
	var applied []int
	r := newTestRunner(t, conn, backups,
		fakeStep{from: 2, applied: &applied},
		fakeStep{from: 0, applied: &applied},
		fakeStep{from: 1, applied: &applied},
	)
	ctx := context.Background()

	if err := r.UpgradeTo(ctx, 3); err != nil {
		t.Fatalf("UpgradeTo failed: %v", err)
	}

	if want := []int{0, 1, 2}; fmt.Sprint(applied) != fmt.Sprint(want) {
		t.Fatalf("steps applied out of order: got %v, want %v", applied, want)
	}
	if backups.calls != 1 {
		t.Fatalf("expected exactly one backup for the run, got %d", backups.calls)
	}

	version, err := r.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected persisted version 3, got %d", version)
	}
}

func TestUpgradeTo_NoOpStillSnapshots(t *testing.T) {
	conn := testConn(t)
	backups := &fakeBackup{}
	r := newTestRunner(t, conn, backups)

	if err := r.UpgradeTo(context.Background(), 0); err != nil {
		t.Fatalf("UpgradeTo failed: %v", err)
	}
	if backups.calls != 1 {
		t.Fatalf("a no-op upgrade must still snapshot, got %d backup calls", backups.calls)
	}
}

func TestUpgradeTo_GapAbortsBeforeBackup(t *testing.T) {
	conn := testConn(t)
	backups := &fakeBackup{}
	var applied []int
	r := newTestRunner(t, conn, backups,
		fakeStep{from: 0, applied: &applied},
		fakeStep{from: 2, applied: &applied},
	)
	ctx := context.Background()

	err := r.UpgradeTo(ctx, 3)
	if !errors.Is(err, ErrMissingStep) {
		t.Fatalf("expected ErrMissingStep, got %v", err)
	}
	var missing *MissingStepError
	if !errors.As(err, &missing) || missing.From != 1 {
		t.Fatalf("expected missing step at version 1, got %v", err)
	}

	if backups.calls != 0 {
		t.Fatalf("registry validation must run before the backup, got %d backup calls", backups.calls)
	}
	if len(applied) != 0 {
		t.Fatalf("no step may run on a gapped registry, applied %v", applied)
	}
}

func TestUpgradeTo_BackupFailureAbortsBeforeSteps(t *testing.T) {
	conn := testConn(t)
	snapErr := errors.New("disk full")
	backups := &fakeBackup{err: snapErr}
	var applied []int
	r := newTestRunner(t, conn, backups, fakeStep{from: 0, applied: &applied})
	ctx := context.Background()

	err := r.UpgradeTo(ctx, 1)
	if !errors.Is(err, snapErr) {
		t.Fatalf("expected the snapshot error, got %v", err)
	}
	if !strings.Contains(err.Error(), "refusing to migrate without a backup") {
		t.Fatalf("error should explain the backup precondition, got %q", err)
	}

	if len(applied) != 0 {
		t.Fatalf("no step may run after a failed backup, applied %v", applied)
	}
	version, err := r.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 0 {
		t.Fatalf("version must be untouched after a failed backup, got %d", version)
	}
}

func TestUpgradeTo_FailedStepRollsBackAndKeepsEarlierSteps(t *testing.T) {
	conn := testConn(t)
	stepErr := errors.New("row transform failed")
	var applied []int
	r := newTestRunner(t, conn, &fakeBackup{},
		fakeStep{from: 0, ddl: "CREATE TABLE committed_marker (id INTEGER)", applied: &applied},
		fakeStep{from: 1, ddl: "CREATE TABLE rolled_back_marker (id INTEGER)", failErr: stepErr, applied: &applied},
	)
	ctx := context.Background()

	err := r.UpgradeTo(ctx, 2)
	var serr *StepError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if serr.From != 1 {
		t.Fatalf("expected failure at step 1, got %d", serr.From)
	}
	if !errors.Is(err, stepErr) {
		t.Fatalf("StepError must wrap the step's cause, got %v", err)
	}

	// Step 0 committed; step 1 rolled back with everything it did.
	version, verr := r.CurrentVersion(ctx)
	if verr != nil {
		t.Fatalf("CurrentVersion failed: %v", verr)
	}
	if version != 1 {
		t.Fatalf("expected version 1 after partial run, got %d", version)
	}
	var n int
	if qerr := conn.DB.QueryRow("SELECT COUNT(*) FROM committed_marker").Scan(&n); qerr != nil {
		t.Fatalf("step 0 work should be committed: %v", qerr)
	}
	if qerr := conn.DB.QueryRow("SELECT COUNT(*) FROM rolled_back_marker").Scan(&n); qerr == nil {
		t.Fatalf("step 1 work should have been rolled back")
	}
}

func TestUpgradeTo_ResumesFromPersistedVersion(t *testing.T) {
	conn := testConn(t)
	backups := &fakeBackup{}
	var applied []int
	failing := fakeStep{from: 1, failErr: errors.New("transient"), applied: &applied}
	r := newTestRunner(t, conn, backups,
		fakeStep{from: 0, applied: &applied},
		failing,
	)
	ctx := context.Background()

	if err := r.UpgradeTo(ctx, 2); err == nil {
		t.Fatalf("expected first run to fail at step 1")
	}

	// Second run with a working step resumes at version 1: step 0 is not
	// re-applied.
	applied = applied[:0]
	r2 := newTestRunner(t, conn, backups,
		fakeStep{from: 0, applied: &applied},
		fakeStep{from: 1, applied: &applied},
	)
	if err := r2.UpgradeTo(ctx, 2); err != nil {
		t.Fatalf("resumed UpgradeTo failed: %v", err)
	}
	if want := []int{1}; fmt.Sprint(applied) != fmt.Sprint(want) {
		t.Fatalf("resumed run applied %v, want %v", applied, want)
	}

	version, err := r2.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2 after resume, got %d", version)
	}
}

func TestUpgradeTo_RejectsDowngrade(t *testing.T) {
	conn := testConn(t)
	r := newTestRunner(t, conn, &fakeBackup{},
		fakeStep{from: 0}, fakeStep{from: 1},
	)
	ctx := context.Background()

	if err := r.UpgradeTo(ctx, 2); err != nil {
		t.Fatalf("UpgradeTo failed: %v", err)
	}

	err := r.UpgradeTo(ctx, 1)
	if err == nil || !strings.Contains(err.Error(), "downgrades are not supported") {
		t.Fatalf("expected downgrade rejection, got %v", err)
	}

	if err := r.UpgradeTo(ctx, -1); err == nil {
		t.Fatalf("expected negative target rejection")
	}
}

func TestStatus_ListsPendingSteps(t *testing.T) {
	conn := testConn(t)
	r := newTestRunner(t, conn, &fakeBackup{},
		fakeStep{from: 0}, fakeStep{from: 1},
	)

	st, err := r.Status(context.Background(), 2)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.Current != 0 || st.Target != 2 {
		t.Fatalf("unexpected status versions: %+v", st)
	}
	if len(st.Pending) != 2 {
		t.Fatalf("expected 2 pending steps, got %v", st.Pending)
	}
	if !strings.Contains(st.Pending[0], "0 -> 1") || !strings.Contains(st.Pending[1], "1 -> 2") {
		t.Fatalf("pending descriptions malformed: %v", st.Pending)
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(fakeStep{from: 0}, fakeStep{from: 0})
	if err == nil {
		t.Fatalf("expected duplicate from-version rejection")
	}

	_, err = NewRegistry(fakeStep{from: -1})
	if err == nil {
		t.Fatalf("expected negative from-version rejection")
	}
}

func TestDefaultRegistry_CoversEveryVersion(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Validate(0, schema.CurrentVersion); err != nil {
		t.Fatalf("default registry has a gap: %v", err)
	}
	for v := 0; v < schema.CurrentVersion; v++ {
		step, ok := r.Step(v)
		if !ok {
			t.Fatalf("missing step for version %d", v)
		}
		if step.From() != v {
			t.Fatalf("step registered at %d reports From() == %d", v, step.From())
		}
		if step.Description() == "" {
			t.Fatalf("step %d has no description", v)
		}
	}
}
