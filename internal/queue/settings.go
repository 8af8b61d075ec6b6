package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Setting returns a persisted setting value.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr("read setting", err)
	}
	return value, true, nil
}

// SetSetting persists a setting value, replacing any previous one.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if !IsKnownSetting(key) {
		return storeErr("write setting", fmt.Errorf("%w: %q", ErrUnknownSetting, key))
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, timestamp(),
	); err != nil {
		return storeErr("write setting", err)
	}
	return nil
}

// Settings returns every persisted setting.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, storeErr("list settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, storeErr("list settings", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list settings", err)
	}
	return out, nil
}
