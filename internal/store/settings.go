// ABOUTME: Settings table access, one serialized value per category key
// ABOUTME: Upsert overwrites in place; records are never versioned or deleted

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSetting returns the stored record for key, or ErrSettingNotFound.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (*SettingsRecord, error) {
	query := `SELECT key, value, updated_at FROM settings WHERE key = ?`

	var rec SettingsRecord
	var updatedAtStr string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&rec.Key, &rec.Value, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying setting %q: %w", key, err)
	}

	rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &rec, nil
}

// UpsertSetting creates or overwrites the value stored for key.
func (s *SQLiteStore) UpsertSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query, key, value, now); err != nil {
		return fmt.Errorf("upserting setting %q: %w", key, err)
	}

	s.logger.Debug("saved setting", "key", key, "bytes", len(value))
	return nil
}

// ListSettings returns every stored record ordered by key.
func (s *SQLiteStore) ListSettings(ctx context.Context) ([]*SettingsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*SettingsRecord
	for rows.Next() {
		var rec SettingsRecord
		var updatedAtStr string
		if err := rows.Scan(&rec.Key, &rec.Value, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating settings: %w", err)
	}
	return records, nil
}
