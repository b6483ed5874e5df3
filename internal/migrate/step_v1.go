package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/karyoview/internal/password"
	"github.com/example/karyoview/internal/schema"
)

// stepV1 is the 0 -> 1 identity split. Version 0 keyed users by the
// client-supplied opaque session string; version 1 assigns each distinct
// identity a surrogate integer id, records the session string in a new
// sessions mapping table, and remaps uploads onto the surrogate key.
// Legacy plaintext passwords are hashed on the way through.
type stepV1 struct{}

func (stepV1) From() int { return 0 }

func (stepV1) Description() string {
	return "split session-keyed identities into surrogate user ids"
}

// legacyUser is a buffered version-0 users row. Rows are read fully before
// any rewrite because the whole run shares a single connection.
type legacyUser struct {
	session  string
	name     string
	email    sql.NullString
	password sql.NullString
	created  sql.NullString
}

// legacyUpload is a buffered version-0 uploads row.
type legacyUpload struct {
	id          int64
	session     string
	filename    string
	filesize    sql.NullInt64
	contentType sql.NullString
	uploaded    sql.NullString
	status      string
}

func (s stepV1) Apply(ctx context.Context, tx *sql.Tx, env *Env) (StepResult, error) {
	var result StepResult

	// Bring the legacy tables to their final version-0 shape first, so
	// databases that skipped intermediate ad-hoc changes still migrate.
	for _, name := range []string{"users", "uploads"} {
		legacy, _ := schema.TableAt(0, name)
		if _, err := env.Reconciler.Reconcile(ctx, tx, legacy); err != nil {
			return result, err
		}
	}

	// New-shape users under a temporary name, plus the mapping table.
	newUsers, _ := schema.TableAt(1, "users")
	tmpUsers := newUsers.WithName("users_migr")
	if _, err := env.Reconciler.Reconcile(ctx, tx, tmpUsers); err != nil {
		return result, err
	}
	sessions, _ := schema.TableAt(1, "sessions")
	if _, err := env.Reconciler.Reconcile(ctx, tx, sessions); err != nil {
		return result, err
	}

	legacyUsers, err := readLegacyUsers(ctx, tx)
	if err != nil {
		return result, &DataError{Table: "users", Err: err}
	}

	// One surrogate id per distinct opaque identity, allocated by the
	// database; the mapping feeds the dependent-table remap below.
	userIDBySession := make(map[string]int64, len(legacyUsers))
	sessionInsert := fmt.Sprintf(
		"INSERT INTO sessions (session_key, user_id, created, last_seen) VALUES (?, ?, ?, %s)",
		env.Dialect.CurrentTimestampExpr())

	for _, u := range legacyUsers {
		stored := u.password
		if stored.Valid && stored.String != "" && !password.IsHashed(stored.String) {
			hashed, err := password.Hash(stored.String)
			if err != nil {
				return result, &DataError{Table: "users", Err: fmt.Errorf("failed to hash legacy password for %q: %w", u.session, err)}
			}
			stored = sql.NullString{String: hashed, Valid: true}
		}

		res, err := tx.ExecContext(ctx,
			"INSERT INTO users_migr (name, email, password, created) VALUES (?, ?, ?, ?)",
			u.name, u.email, stored, u.created)
		if err != nil {
			return result, &DataError{Table: "users", Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return result, &DataError{Table: "users", Err: fmt.Errorf("failed to read assigned user id: %w", err)}
		}

		if _, err := tx.ExecContext(ctx, sessionInsert, u.session, id, u.created); err != nil {
			return result, &DataError{Table: "sessions", Err: err}
		}

		userIDBySession[u.session] = id
		result.Migrated++
	}

	if err := swapTable(ctx, tx, env, "users_migr", "users"); err != nil {
		return result, err
	}

	// Dependent table: uploads, remapped through the identity mapping.
	newUploads, _ := schema.TableAt(1, "uploads")
	tmpUploads := newUploads.WithName("uploads_migr")
	if _, err := env.Reconciler.Reconcile(ctx, tx, tmpUploads); err != nil {
		return result, err
	}

	legacyUploads, err := readLegacyUploads(ctx, tx)
	if err != nil {
		return result, &DataError{Table: "uploads", Err: err}
	}

	for _, up := range legacyUploads {
		userID, ok := userIDBySession[up.session]
		if !ok {
			if env.Orphans == FailOnOrphans {
				return result, &DataError{Table: "uploads",
					Err: fmt.Errorf("%w: upload %d references unknown identity %q", ErrOrphanedRow, up.id, up.session)}
			}
			env.Logger.Warn("dropping orphaned upload row",
				"upload", up.id, "identity", up.session, "filename", up.filename)
			result.Orphaned++
			continue
		}

		// Upload ids are preserved: files on disk are keyed by them.
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO uploads_migr (id, user_id, filename, filesize, content_type, uploaded, status) VALUES (?, ?, ?, ?, ?, ?, ?)",
			up.id, userID, up.filename, up.filesize, up.contentType, up.uploaded, up.status); err != nil {
			return result, &DataError{Table: "uploads", Err: err}
		}
		result.Migrated++
	}

	if err := swapTable(ctx, tx, env, "uploads_migr", "uploads"); err != nil {
		return result, err
	}

	return result, nil
}

// readLegacyUsers buffers every version-0 users row.
func readLegacyUsers(ctx context.Context, tx *sql.Tx) ([]legacyUser, error) {
	rows, err := tx.QueryContext(ctx, "SELECT session, name, email, password, created FROM users")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []legacyUser
	for rows.Next() {
		var u legacyUser
		if err := rows.Scan(&u.session, &u.name, &u.email, &u.password, &u.created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// readLegacyUploads buffers every version-0 uploads row.
func readLegacyUploads(ctx context.Context, tx *sql.Tx) ([]legacyUpload, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, session, filename, filesize, content_type, uploaded, status FROM uploads")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []legacyUpload
	for rows.Next() {
		var up legacyUpload
		if err := rows.Scan(&up.id, &up.session, &up.filename, &up.filesize, &up.contentType, &up.uploaded, &up.status); err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, rows.Err()
}

// swapTable drops the old table and renames the rewritten one into its
// permanent name. Runs inside the step transaction, so a later failure
// rolls the swap back with everything else.
func swapTable(ctx context.Context, tx *sql.Tx, env *Env, tmp, final string) error {
	drop := fmt.Sprintf("DROP TABLE %s", env.Dialect.QuoteIdentifier(final))
	if _, err := tx.ExecContext(ctx, drop); err != nil {
		return &DataError{Table: final, Err: err}
	}
	if _, err := tx.ExecContext(ctx, env.Dialect.RenameTableSQL(tmp, final)); err != nil {
		return &DataError{Table: final, Err: err}
	}
	return nil
}
