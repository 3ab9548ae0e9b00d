// Package store persists the client's local state (auth token, cached
// display name) in a SQLite database on the practitioner's machine.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Fixed keys for the persisted values. Token and display name are written
// together on login and cleared together on logout.
const (
	KeyAccessToken = "access_token"
	KeyDisplayName = "display_name"
)

// Store implements local key-value persistence using SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates a new local store. It creates the database file and schema
// if they don't exist. Environment variables in the path are expanded.
func Open(dbPath string) (*Store, error) {
	dbPath = os.ExpandEnv(dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Get returns the stored value for key, or the empty string when the key is
// absent. Absence is not an error: a logged-out client simply has no token.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces the value for key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Token returns the persisted auth token, reading storage on every call so
// the HTTP client never works from a stale in-memory copy.
func (s *Store) Token(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyAccessToken)
}

// DisplayName returns the cached practitioner display name.
func (s *Store) DisplayName(ctx context.Context) (string, error) {
	return s.Get(ctx, KeyDisplayName)
}

// SetDisplayName refreshes the cached display name after a profile fetch.
func (s *Store) SetDisplayName(ctx context.Context, name string) error {
	return s.Set(ctx, KeyDisplayName, name)
}

// SaveSession stores the auth token and display name atomically after a
// successful login.
func (s *Store) SaveSession(ctx context.Context, token, displayName string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		KeyAccessToken: token,
		KeyDisplayName: displayName,
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, value); err != nil {
			return fmt.Errorf("failed to store %s: %w", key, err)
		}
	}

	return tx.Commit()
}

// ClearSession removes the auth token and cached display name together, as
// a single logout action.
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key IN (?, ?)",
		KeyAccessToken, KeyDisplayName)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
