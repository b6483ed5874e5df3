package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/example/karyoview/internal/dbconn"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// TimeLayout is the datetime format persisted in both dialects.
const TimeLayout = "2006-01-02 15:04:05"

// User is an account in the current schema: a surrogate integer id with
// sessions attached separately.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Created      time.Time
}

// Session maps an opaque session key onto a user id.
type Session struct {
	Key      string
	UserID   int64
	Created  time.Time
	LastSeen time.Time
	Expires  time.Time
}

// Upload is one uploaded karyotype data file's metadata row. The file
// itself lives in the upload directory keyed by the row id; the integrity
// scan reconciles the two.
type Upload struct {
	ID          int64
	UserID      int64
	Filename    string
	Filesize    int64
	ContentType string
	Uploaded    time.Time
	Status      string
	ShareMode   string
}

// Store is the storage layer over the account database. It owns the tables
// once a migration run has finished; during a run the migration step is
// the only writer.
type Store struct {
	conn *dbconn.Conn
	now  func() time.Time
}

// New builds a store over an open connection.
func New(conn *dbconn.Conn) *Store {
	return &Store{conn: conn, now: time.Now}
}

// formatTime renders a timestamp in the persisted layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// parseTime reads a persisted timestamp; unparseable or NULL values come
// back zero rather than failing a whole row scan.
func parseTime(s sql.NullString) time.Time {
	if !s.Valid {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullable renders an optional string for insertion.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
