package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// Bootstrap creates the default profile and its listener on first run, and
// back-fills default settings for every profile on later runs.
func (db *DB) Bootstrap(ctx context.Context) error {
	return db.Tx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
			return fmt.Errorf("failed to check profiles: %w", err)
		}

		if count == 0 {
			result, err := tx.ExecContext(ctx,
				`INSERT INTO profiles (name, timezone, is_active) VALUES (?, ?, 1)`,
				"default", detectTimezone())
			if err != nil {
				return fmt.Errorf("failed to create default profile: %w", err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO api_servers (profile_id, host, port) VALUES (?, '0.0.0.0', 8080)`, id); err != nil {
				return fmt.Errorf("failed to create default API server: %w", err)
			}
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM profiles`)
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		_ = rows.Close()

		for _, id := range ids {
			if err := seedSettings(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// detectTimezone reads TZ, then /etc/timezone, then the /etc/localtime link.
func detectTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if data, err := os.ReadFile("/etc/timezone"); err == nil {
		if tz := strings.TrimSpace(string(data)); tz != "" {
			return tz
		}
	}
	if link, err := os.Readlink("/etc/localtime"); err == nil {
		if idx := strings.Index(link, "zoneinfo/"); idx != -1 {
			return link[idx+len("zoneinfo/"):]
		}
	}
	return "UTC"
}
