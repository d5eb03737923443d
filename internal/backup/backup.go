// Package backup snapshots the SQLite database, encrypts the snapshot, and
// uploads it to S3-compatible storage on a schedule or on demand.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/rturner/choreboard/internal/config"
	"github.com/rturner/choreboard/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager manages encrypted database backups.
type Manager struct {
	mu       sync.RWMutex
	cfg      config.Backup
	status   Status
	callback StatusCallback

	db       *sql.DB
	settings *store.SettingsStore
	client   s3Client
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg config.Backup, db *sql.DB, settings *store.SettingsStore, callback StatusCallback, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		settings: settings,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}

	if cfg.Enabled() {
		m.client = newS3Client(cfg)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg config.Backup) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	last, ok, err := m.settings.LastBackupAt()
	if err != nil {
		m.logger.Error("read last backup time", "error", err)
		return
	}
	if ok && time.Since(last) < m.cfg.Interval {
		return
	}
	if err := m.Run(ctx); err != nil {
		m.logger.Error("scheduled backup", "error", err)
	}
}

// Run performs one backup: snapshot, encrypt, upload, record.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("backups are disabled")
	}

	m.setStatus(Status{State: StateRunning})

	data, err := m.snapshot(ctx)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return err
	}

	encrypted, err := Encrypt(data, m.cfg.Passphrase)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return err
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("choreboard/%s.db.enc", now.Format("2006-01-02T15-04-05Z"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(encrypted),
	})
	if err != nil {
		err = fmt.Errorf("upload backup: %w", err)
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return err
	}

	if err := m.settings.SetLastBackupAt(now); err != nil {
		m.logger.Error("record backup time", "error", err)
	}
	m.logger.Info("backup uploaded", "key", key, "bytes", len(encrypted))
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	return nil
}

// snapshot writes a consistent copy of the live database via VACUUM INTO
// and returns its contents.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	dir, err := os.MkdirTemp("", "choreboard-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}
