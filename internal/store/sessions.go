package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OpenSession issues a fresh session key for a user, valid for ttl.
func (s *Store) OpenSession(ctx context.Context, userID int64, ttl time.Duration) (Session, error) {
	now := s.now().UTC()
	session := Session{
		Key:      uuid.NewString(),
		UserID:   userID,
		Created:  now,
		LastSeen: now,
		Expires:  now.Add(ttl),
	}

	_, err := s.conn.DB.ExecContext(ctx,
		"INSERT INTO sessions (session_key, user_id, created, last_seen, expires) VALUES (?, ?, ?, ?, ?)",
		session.Key, session.UserID, formatTime(session.Created), formatTime(session.LastSeen), formatTime(session.Expires))
	if err != nil {
		return Session{}, fmt.Errorf("failed to open session: %w", err)
	}
	return session, nil
}

// GetSession retrieves a session by its opaque key.
func (s *Store) GetSession(ctx context.Context, key string) (Session, error) {
	var (
		session  Session
		created  sql.NullString
		lastSeen sql.NullString
		expires  sql.NullString
	)
	err := s.conn.DB.QueryRowContext(ctx,
		"SELECT session_key, user_id, created, last_seen, expires FROM sessions WHERE session_key = ?", key).
		Scan(&session.Key, &session.UserID, &created, &lastSeen, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to scan session: %w", err)
	}
	session.Created = parseTime(created)
	session.LastSeen = parseTime(lastSeen)
	session.Expires = parseTime(expires)
	return session, nil
}

// TouchSession refreshes a session's last-seen time and pushes its expiry
// out by ttl.
func (s *Store) TouchSession(ctx context.Context, key string, ttl time.Duration) error {
	now := s.now().UTC()
	res, err := s.conn.DB.ExecContext(ctx,
		"UPDATE sessions SET last_seen = ?, expires = ? WHERE session_key = ?",
		formatTime(now), formatTime(now.Add(ttl)), key)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpiredSessions deletes sessions whose expiry has passed and
// returns how many were removed.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int, error) {
	res, err := s.conn.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires IS NOT NULL AND expires < ?", formatTime(s.now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}
