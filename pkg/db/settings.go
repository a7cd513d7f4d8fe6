package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrSettingNotFound = errors.New("setting not found")

// DefaultSettings are written to a new profile on first run. Keys use the
// dotted form the config loader reads.
var DefaultSettings = map[string]string{
	"hue.bridge_ip":         "",
	"hue.username":          "",
	"mesh.port":             "",
	"mesh.family":           "zigbee",
	"mesh.secondary_port":   "",
	"mesh.scan_window":      "5s",
	"wemo.enabled":          "true",
	"wemo.search_window":    "3s",
	"lan.enabled":           "true",
	"lan.services":          "_http._tcp,_hap._tcp,_googlecast._tcp,_sonos._tcp,_hue._tcp,_esphomelib._tcp",
	"discovery.timeout":     "30s",
	"discovery.concurrency": "0",
	"mqtt.broker":           "",
	"mqtt.topic_prefix":     "homai",
}

// SettingsStore reads and writes a profile's key/value settings.
type SettingsStore interface {
	Get(ctx context.Context, profileID int64, key string) (string, error)
	All(ctx context.Context, profileID int64) (map[string]string, error)
	Set(ctx context.Context, profileID int64, key, value string) error
	Delete(ctx context.Context, profileID int64, key string) error
}

// Settings returns a SettingsStore for this database.
func (db *DB) Settings() SettingsStore {
	return &settingsStore{db: db}
}

type settingsStore struct {
	db *DB
}

func (s *settingsStore) Get(ctx context.Context, profileID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE profile_id = ? AND key = ?`, profileID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return value, err
}

func (s *settingsStore) All(ctx context.Context, profileID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE profile_id = ? ORDER BY key`, profileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *settingsStore) Set(ctx context.Context, profileID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (profile_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(profile_id, key) DO UPDATE SET value = excluded.value, updated_at = datetime('now')
	`, profileID, key, value)
	if err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (s *settingsStore) Delete(ctx context.Context, profileID int64, key string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE profile_id = ? AND key = ?`, profileID, key)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return nil
}

// seedSettings inserts any default key the profile does not have yet.
func seedSettings(ctx context.Context, tx *sql.Tx, profileID int64) error {
	for k, v := range DefaultSettings {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (profile_id, key, value) VALUES (?, ?, ?)`,
			profileID, k, v); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", k, err)
		}
	}
	return nil
}
