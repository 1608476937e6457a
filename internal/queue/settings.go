package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const pausedKey = "queue_paused"

// IsPaused reads the global pause flag. Callers must re-read it immediately
// before every promotion decision rather than caching it.
func (s *Store) IsPaused(ctx context.Context) (bool, error) {
	value, err := s.getSetting(ctx, pausedKey)
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

// SetPaused persists the global pause flag.
func (s *Store) SetPaused(ctx context.Context, paused bool) error {
	value := "false"
	if paused {
		value = "true"
	}
	return s.SetSetting(ctx, pausedKey, value)
}

func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT value FROM settings WHERE key = ?`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, nil
}

// GetSetting returns the raw value for a settings key, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	return s.getSetting(ctx, key)
}

// SetSetting upserts a settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
         ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}
