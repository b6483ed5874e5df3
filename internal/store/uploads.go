package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/karyoview/internal/schema"
)

// RecordUpload inserts a metadata row for a newly uploaded file and
// returns it with its database-assigned id.
func (s *Store) RecordUpload(ctx context.Context, userID int64, filename, contentType string, size int64) (Upload, error) {
	if filename == "" {
		return Upload{}, fmt.Errorf("upload filename must not be empty")
	}

	uploaded := s.now().UTC()
	res, err := s.conn.DB.ExecContext(ctx,
		"INSERT INTO uploads (user_id, filename, filesize, content_type, uploaded, status, share_mode) VALUES (?, ?, ?, ?, ?, ?, ?)",
		userID, filename, size, nullable(contentType), formatTime(uploaded), schema.StatusPending, schema.SharePrivate)
	if err != nil {
		return Upload{}, fmt.Errorf("failed to record upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read assigned upload id: %w", err)
	}

	return Upload{
		ID:          id,
		UserID:      userID,
		Filename:    filename,
		Filesize:    size,
		ContentType: contentType,
		Uploaded:    uploaded,
		Status:      schema.StatusPending,
		ShareMode:   schema.SharePrivate,
	}, nil
}

// ListUploads returns a user's uploads ordered by upload time.
func (s *Store) ListUploads(ctx context.Context, userID int64) ([]Upload, error) {
	return s.queryUploads(ctx,
		"SELECT id, user_id, filename, filesize, content_type, uploaded, status, share_mode FROM uploads WHERE user_id = ? ORDER BY uploaded",
		userID)
}

// AllUploads returns every upload row. The integrity scan walks this list
// against the upload directory.
func (s *Store) AllUploads(ctx context.Context) ([]Upload, error) {
	return s.queryUploads(ctx,
		"SELECT id, user_id, filename, filesize, content_type, uploaded, status, share_mode FROM uploads ORDER BY id")
}

// SetUploadStatus transitions an upload's processing status.
func (s *Store) SetUploadStatus(ctx context.Context, id int64, status string) error {
	res, err := s.conn.DB.ExecContext(ctx, "UPDATE uploads SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to set upload status: %w", err)
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

// DeleteUpload removes an upload metadata row.
func (s *Store) DeleteUpload(ctx context.Context, id int64) error {
	res, err := s.conn.DB.ExecContext(ctx, "DELETE FROM uploads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
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

func (s *Store) queryUploads(ctx context.Context, query string, args ...any) ([]Upload, error) {
	rows, err := s.conn.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var (
			up          Upload
			filesize    sql.NullInt64
			contentType sql.NullString
			uploaded    sql.NullString
			shareMode   sql.NullString
		)
		if err := rows.Scan(&up.ID, &up.UserID, &up.Filename, &filesize, &contentType, &uploaded, &up.Status, &shareMode); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		up.Filesize = filesize.Int64
		up.ContentType = contentType.String
		up.Uploaded = parseTime(uploaded)
		up.ShareMode = shareMode.String
		uploads = append(uploads, up)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploads: %w", err)
	}
	return uploads, nil
}
