package store

import (
	"context"
	"database/sql"
	"time"
)

// SetFlag upserts a boolean config flag.
func (s *Store) SetFlag(ctx context.Context, key string, value bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_flags (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	return err
}

// GetFlag returns the value of a config flag. Missing flags are false.
func (s *Store) GetFlag(ctx context.Context, key string) (bool, error) {
	var value bool
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config_flags WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return value, err
}
