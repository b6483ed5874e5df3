package migrate

import (
	"context"
	"database/sql"

	"github.com/example/karyoview/internal/schema"
)

// stepV2 is the 1 -> 2 transition: uploads gain a share_mode enum
// (defaulted and backfilled to private) and sessions gain an expiry column
// derived from last_seen. Purely additive, so reconciliation does the
// structural work and the data transform is a pair of backfills.
type stepV2 struct{}

func (stepV2) From() int { return 1 }

func (stepV2) Description() string {
	return "add upload share modes and session expiry"
}

func (s stepV2) Apply(ctx context.Context, tx *sql.Tx, env *Env) (StepResult, error) {
	var result StepResult

	uploads, _ := schema.TableAt(2, "uploads")
	if _, err := env.Reconciler.Reconcile(ctx, tx, uploads); err != nil {
		return result, err
	}
	// The column default covers new rows; the backfill covers engines that
	// left pre-existing rows empty.
	res, err := tx.ExecContext(ctx,
		"UPDATE uploads SET share_mode = ? WHERE share_mode IS NULL OR share_mode = ''",
		schema.SharePrivate)
	if err != nil {
		return result, &DataError{Table: "uploads", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil {
		result.Migrated += int(n)
	}

	sessions, _ := schema.TableAt(2, "sessions")
	if _, err := env.Reconciler.Reconcile(ctx, tx, sessions); err != nil {
		return result, err
	}
	res, err = tx.ExecContext(ctx,
		"UPDATE sessions SET expires = last_seen WHERE expires IS NULL")
	if err != nil {
		return result, &DataError{Table: "sessions", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil {
		result.Migrated += int(n)
	}

	return result, nil
}
