package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
)

// CreateUser inserts a new administrator.
func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, display_name, password_hash, active, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, u.PasswordHash, u.Active, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return model.Duplicate("user", u.Username)
	}
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return err
	}
	slog.Info("created user", "username", u.Username)
	return nil
}

// GetUser returns a user by username.
func (s *Store) GetUser(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, display_name, password_hash, active, created_at
		 FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.DisplayName, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, display_name, password_hash, active, created_at
		 FROM users ORDER BY username`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.Username, &u.DisplayName, &u.PasswordHash, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ToggleUserActive flips the active flag on a user.
func (s *Store) ToggleUserActive(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = NOT active WHERE username = ?`, username)
	if err != nil {
		return err
	}
	return affected(res, "user", username)
}

// DeleteUser removes a user and its sessions.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE username = ?`, username); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	return affected(res, "user", username)
}

// UserCount returns the total number of users.
func (s *Store) UserCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
