package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/karyoview/internal/password"
)

// CreateUser inserts a new account with a freshly hashed password and
// returns it with its database-assigned id.
func (s *Store) CreateUser(ctx context.Context, name, email, plaintext string) (User, error) {
	if name == "" {
		return User{}, fmt.Errorf("user name must not be empty")
	}

	hash := ""
	if plaintext != "" {
		var err error
		hash, err = password.Hash(plaintext)
		if err != nil {
			return User{}, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	created := s.now().UTC()
	res, err := s.conn.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password, created) VALUES (?, ?, ?, ?)",
		name, nullable(email), nullable(hash), formatTime(created))
	if err != nil {
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("failed to read assigned user id: %w", err)
	}

	return User{ID: id, Name: name, Email: email, PasswordHash: hash, Created: created}, nil
}

// GetUser retrieves an account by id.
func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.conn.DB.QueryRowContext(ctx,
		"SELECT id, name, email, password, created FROM users WHERE id = ?", id))
}

// GetUserByEmail retrieves an account by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.conn.DB.QueryRowContext(ctx,
		"SELECT id, name, email, password, created FROM users WHERE email = ?", email))
}

// VerifyPassword checks a login attempt against the stored hash.
func (s *Store) VerifyPassword(ctx context.Context, userID int64, plaintext string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return password.Verify(user.PasswordHash, plaintext)
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var (
		u       User
		email   sql.NullString
		hash    sql.NullString
		created sql.NullString
	)
	err := row.Scan(&u.ID, &u.Name, &email, &hash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to scan user: %w", err)
	}
	u.Email = email.String
	u.PasswordHash = hash.String
	u.Created = parseTime(created)
	return u, nil
}
