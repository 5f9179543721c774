package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetJSON decodes the value stored under key into v. It reports false when
// the key does not exist.
func (d *DB) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	var raw string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v as JSON under key.
func (d *DB) SetJSON(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return d.withTx(ctx, Event{Kind: kindForKey(key), Key: key}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO kv(key, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, key, string(raw))
		return err
	})
}

func (d *DB) Delete(ctx context.Context, key string) error {
	return d.withTx(ctx, Event{Kind: kindForKey(key), Key: key}, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
		return err
	})
}

func kindForKey(key string) EventKind {
	if key == "ai-visibility-config" {
		return EventConfig
	}
	return EventKV
}
