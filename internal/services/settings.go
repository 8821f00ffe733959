package services

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"widget-sync-backend/internal/models"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Per-device defaults, seeded on first access.
const (
	defaultTimezoneMine  = "America/New_York"
	defaultTimezoneOther = "Asia/Manila"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS device_settings (
    device_id      TEXT PRIMARY KEY,
    timezone_mine  TEXT NOT NULL,
    timezone_other TEXT NOT NULL,
    kikay_mode     INTEGER NOT NULL
);
`

// SettingsStore is durable per-device configuration. Settings are owned by
// one device and never synced to the remote store or to the partner device.
// Timezone identifiers are accepted as-is; a bad one only surfaces when the
// widget resolves it for display.
type SettingsStore struct {
	db *sql.DB
}

// OpenSettings opens (and if needed creates) the settings database at path.
func OpenSettings(path string) (*SettingsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database: %w", err)
	}

	if _, err := db.Exec(settingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create settings schema: %w", err)
	}

	return &SettingsStore{db: db}, nil
}

// Close closes the settings database.
func (s *SettingsStore) Close() error {
	return s.db.Close()
}

// Get returns the settings for a device, seeding the defaults exactly once.
// Subsequent calls never re-seed, so edits are never reverted.
func (s *SettingsStore) Get(ctx context.Context, deviceID string) (*models.DeviceSettings, error) {
	if err := s.seed(ctx, deviceID); err != nil {
		return nil, err
	}

	query := `
		SELECT device_id, timezone_mine, timezone_other, kikay_mode
		FROM device_settings
		WHERE device_id = ?
	`
	var (
		settings models.DeviceSettings
		kikay    int
	)
	err := s.db.QueryRowContext(ctx, query, deviceID).Scan(
		&settings.DeviceID, &settings.TimezoneMine, &settings.TimezoneOther, &kikay,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	settings.KikayMode = kikay != 0
	return &settings, nil
}

// SetTimezoneMine writes the caller's own timezone, immediately durable.
func (s *SettingsStore) SetTimezoneMine(ctx context.Context, deviceID, zone string) error {
	return s.setField(ctx, deviceID, "timezone_mine", zone)
}

// SetTimezoneOther writes the partner's timezone, immediately durable.
func (s *SettingsStore) SetTimezoneOther(ctx context.Context, deviceID, zone string) error {
	return s.setField(ctx, deviceID, "timezone_other", zone)
}

// SetKikayMode toggles the partner label between "Him" and "Her".
func (s *SettingsStore) SetKikayMode(ctx context.Context, deviceID string, enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return s.setField(ctx, deviceID, "kikay_mode", v)
}

// seed inserts the default row for a device if none exists yet.
func (s *SettingsStore) seed(ctx context.Context, deviceID string) error {
	query := `
		INSERT OR IGNORE INTO device_settings (device_id, timezone_mine, timezone_other, kikay_mode)
		VALUES (?, ?, ?, 1)
	`
	if _, err := s.db.ExecContext(ctx, query, deviceID, defaultTimezoneMine, defaultTimezoneOther); err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

func (s *SettingsStore) setField(ctx context.Context, deviceID, column string, value interface{}) error {
	if err := s.seed(ctx, deviceID); err != nil {
		return err
	}
	// column comes from the fixed set above, never from input
	query := fmt.Sprintf(`UPDATE device_settings SET %s = ? WHERE device_id = ?`, column)
	if _, err := s.db.ExecContext(ctx, query, value, deviceID); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}
