package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

const (
	keyLogoutDuration = "logout_duration_minutes"
	keyLastBackupAt   = "last_backup_at"

	defaultLogoutMinutes = 5
	minLogoutMinutes     = 1
	maxLogoutMinutes     = 15
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, true, nil
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// LogoutDuration returns how long an idle login stays valid, clamped to
// [1, 15] minutes. Out-of-range or unparseable stored values fall back to
// the default rather than erroring.
func (s *SettingsStore) LogoutDuration() (time.Duration, error) {
	value, ok, err := s.Get(keyLogoutDuration)
	if err != nil {
		return 0, err
	}
	minutes := defaultLogoutMinutes
	if ok {
		if n, err := strconv.Atoi(value); err == nil {
			minutes = n
		}
	}
	if minutes < minLogoutMinutes {
		minutes = minLogoutMinutes
	}
	if minutes > maxLogoutMinutes {
		minutes = maxLogoutMinutes
	}
	return time.Duration(minutes) * time.Minute, nil
}

func (s *SettingsStore) SetLogoutDuration(minutes int) error {
	if minutes < minLogoutMinutes || minutes > maxLogoutMinutes {
		return fmt.Errorf("logout duration %d out of range [%d, %d]", minutes, minLogoutMinutes, maxLogoutMinutes)
	}
	return s.Set(keyLogoutDuration, strconv.Itoa(minutes))
}

func (s *SettingsStore) LastBackupAt() (time.Time, bool, error) {
	value, ok, err := s.Get(keyLastBackupAt)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last backup time: %w", err)
	}
	return t, true, nil
}

func (s *SettingsStore) SetLastBackupAt(t time.Time) error {
	return s.Set(keyLastBackupAt, t.UTC().Format(time.RFC3339))
}
