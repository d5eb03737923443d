// Package config loads runtime configuration from CHOREBOARD_* environment
// variables. Everything has a sane default for a single-board deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     string
	DBPath   string
	Timezone string

	LogLevel  string
	LogFormat string

	// AdminPassword seeds the rescue Admin account when no enabled admin
	// exists; empty means the well-known default.
	AdminPassword string

	// OwnerException lets users edit and delete entries they created even
	// without the edit or delete permission.
	OwnerException bool

	Backup Backup
}

// Backup holds the S3 target for encrypted database snapshots. Backups are
// disabled unless Bucket and Passphrase are both set.
type Backup struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Passphrase string
	Interval   time.Duration
}

func (b Backup) Enabled() bool {
	return b.Bucket != "" && b.Passphrase != ""
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:           envOr("CHOREBOARD_PORT", "8080"),
		DBPath:         envOr("CHOREBOARD_DB_PATH", "choreboard.db"),
		Timezone:       envOr("CHOREBOARD_TIMEZONE", ""),
		LogLevel:       envOr("CHOREBOARD_LOG_LEVEL", "info"),
		LogFormat:      envOr("CHOREBOARD_LOG_FORMAT", "text"),
		AdminPassword:  os.Getenv("CHOREBOARD_ADMIN_PASSWORD"),
		OwnerException: envBool("CHOREBOARD_OWNER_EXCEPTION"),
		Backup: Backup{
			Bucket:     os.Getenv("CHOREBOARD_S3_BUCKET"),
			Region:     envOr("CHOREBOARD_S3_REGION", "auto"),
			Endpoint:   os.Getenv("CHOREBOARD_S3_ENDPOINT"),
			AccessKey:  os.Getenv("CHOREBOARD_S3_ACCESS_KEY"),
			SecretKey:  os.Getenv("CHOREBOARD_S3_SECRET_KEY"),
			Passphrase: os.Getenv("CHOREBOARD_BACKUP_PASSPHRASE"),
			Interval:   24 * time.Hour,
		},
	}

	if raw := os.Getenv("CHOREBOARD_BACKUP_INTERVAL_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours < 1 {
			return nil, fmt.Errorf("invalid CHOREBOARD_BACKUP_INTERVAL_HOURS %q", raw)
		}
		cfg.Backup.Interval = time.Duration(hours) * time.Hour
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid CHOREBOARD_PORT %q", cfg.Port)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
