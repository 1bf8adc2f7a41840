package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/pavelanni/resultportal/internal/model"
)

// GetAnswerKey returns the answer key for post, or nil.
func (s *Store) GetAnswerKey(ctx context.Context, post model.Post) (*model.AnswerKey, error) {
	var k model.AnswerKey
	err := s.db.QueryRowContext(ctx,
		`SELECT post, file_path, file_name, published, uploaded_at FROM answer_keys WHERE post = ?`, post,
	).Scan(&k.Post, &k.FilePath, &k.FileName, &k.Published, &k.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListAnswerKeys returns answer keys ordered by post.
func (s *Store) ListAnswerKeys(ctx context.Context, publishedOnly bool) ([]model.AnswerKey, error) {
	query := `SELECT post, file_path, file_name, published, uploaded_at FROM answer_keys`
	if publishedOnly {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY post`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []model.AnswerKey
	for rows.Next() {
		var k model.AnswerKey
		if err := rows.Scan(&k.Post, &k.FilePath, &k.FileName, &k.Published, &k.UploadedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// UpsertAnswerKey stores the answer key for k.Post, replacing any prior one.
func (s *Store) UpsertAnswerKey(ctx context.Context, k model.AnswerKey) error {
	uploadedAt := k.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO answer_keys (post, file_path, file_name, published, uploaded_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(post) DO UPDATE SET file_path = excluded.file_path, file_name = excluded.file_name,
		 published = excluded.published, uploaded_at = excluded.uploaded_at`,
		k.Post, k.FilePath, k.FileName, k.Published, uploadedAt.UTC(),
	)
	return err
}

// SetAnswerKeyPublished toggles publication of one answer key.
func (s *Store) SetAnswerKeyPublished(ctx context.Context, post model.Post, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE answer_keys SET published = ? WHERE post = ?`, published, post)
	if err != nil {
		return err
	}
	return affected(res, "answer key", string(post))
}

// SetAllAnswerKeysPublished toggles publication of every answer key.
func (s *Store) SetAllAnswerKeysPublished(ctx context.Context, published bool) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE answer_keys SET published = ?`, published)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAnswerKey removes the answer key record for post.
func (s *Store) DeleteAnswerKey(ctx context.Context, post model.Post) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM answer_keys WHERE post = ?`, post)
	if err != nil {
		return err
	}
	return affected(res, "answer key", string(post))
}
