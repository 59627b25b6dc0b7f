package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Setting keys.
const (
	SettingAutoAnalyze = "autoAnalyze"
	SettingThreshold   = "threshold"
)

// DefaultSettings are written on first run when absent.
var DefaultSettings = map[string]any{
	SettingAutoAnalyze: true,
	SettingThreshold:   0.7,
}

// SetSetting stores value as JSON under key.
func (d *DB) SetSetting(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding setting %s: %w", key, err)
	}
	_, err = d.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// GetSetting decodes the value stored under key into dest.
// Returns false (and leaves dest untouched) when the key is absent.
func (d *DB) GetSetting(ctx context.Context, key string, dest any) (bool, error) {
	var raw string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decoding setting %s: %w", key, err)
	}
	return true, nil
}

// AllSettings returns every stored setting decoded from JSON.
func (d *DB) AllSettings(ctx context.Context) (map[string]any, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding setting %s: %w", key, err)
		}
		out[key] = v
	}
	return out, rows.Err()
}

// EnsureDefaultSettings writes DefaultSettings for keys not yet present.
func (d *DB) EnsureDefaultSettings(ctx context.Context) error {
	for key, value := range DefaultSettings {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding setting %s: %w", key, err)
		}
		_, err = d.conn.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`, key, string(raw))
		if err != nil {
			return fmt.Errorf("writing default setting %s: %w", key, err)
		}
	}
	return nil
}

// AutoAnalyze reports whether captures should be analyzed automatically.
// Defaults to true when unset.
func (d *DB) AutoAnalyze(ctx context.Context) (bool, error) {
	enabled := true
	if _, err := d.GetSetting(ctx, SettingAutoAnalyze, &enabled); err != nil {
		return true, err
	}
	return enabled, nil
}
