package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pavelanni/resultportal/internal/model"

	_ "modernc.org/sqlite"
)

// Store is the SQLite implementation of Backend.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		roll_no TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dob TEXT NOT NULL,
		mobile TEXT NOT NULL CHECK (length(mobile) = 10),
		post TEXT NOT NULL CHECK (post IN ('DCP', 'DCO', 'FCD', 'LFM', 'DFO', 'SFO', 'WLO')),
		omr_path TEXT NOT NULL DEFAULT '',
		result TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_post ON students(post);
	CREATE INDEX IF NOT EXISTS idx_students_created_at ON students(created_at);

	CREATE TABLE IF NOT EXISTS answer_keys (
		post TEXT PRIMARY KEY CHECK (post IN ('DCO', 'FCD', 'LFM', 'DFO', 'SFO', 'WLO')),
		file_path TEXT NOT NULL,
		file_name TEXT NOT NULL DEFAULT '',
		published INTEGER NOT NULL DEFAULT 0,
		uploaded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS config_flags (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (username) REFERENCES users(username) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// affected turns a zero-row mutation into a not-found conflict.
func affected(res sql.Result, kind, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFound(kind, key)
	}
	return nil
}
