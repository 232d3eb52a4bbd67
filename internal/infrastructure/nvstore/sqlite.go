package nvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/fieldlogger/internal/infrastructure/database"
)

// SQLite is a Store backed by the nvstore table of the logger database.
// The schema is created by the migrations package.
type SQLite struct {
	db *database.DB
}

// NewSQLite wraps an open, migrated database.
func NewSQLite(db *database.DB) *SQLite {
	return &SQLite{db: db}
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM nvstore WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nvstore get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements Store.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nvstore (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("nvstore set %s: %w", key, err)
	}
	return nil
}

// Erase implements Store.
func (s *SQLite) Erase(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM nvstore WHERE key = ?", key); err != nil {
		return fmt.Errorf("nvstore erase %s: %w", key, err)
	}
	return nil
}

// Sync implements Store by checkpointing the write-ahead log.
func (s *SQLite) Sync(ctx context.Context) error {
	return s.db.Checkpoint(ctx)
}
