// Package backup snapshots the database, seals the copy and keeps it in
// S3-compatible storage.
package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/objectstore"
	"github.com/dukerupert/chorequest/internal/secret"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/websocket"
)

var (
	ErrDisabled = errors.New("backup not configured: storage or passphrase missing")
	ErrRunning  = errors.New("backup already in progress")
	ErrNotFound = errors.New("backup not found")
)

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
	InProgress bool       `json:"in_progress"`
}

type Config struct {
	Bucket        string
	RetentionDays int
}

// Manager runs encrypted backups. It is disabled unless both a storage
// client and a sealing passphrase are present.
type Manager struct {
	mu     sync.RWMutex
	status Status

	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	client  objectstore.Client
	sealer  *secret.Sealer
	clock   clock.Clock
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewManager(cfg Config, db *sql.DB, client objectstore.Client, sealer *secret.Sealer, clk clock.Clock, hub *websocket.Hub, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:     cfg,
		db:      db,
		backups: store.NewBackupStore(db),
		client:  client,
		sealer:  sealer,
		clock:   clk,
		hub:     hub,
		logger:  logger,
		status:  Status{State: StateDisabled},
	}
	if m.Enabled() {
		m.status.State = StateIdle
	}
	return m
}

func (m *Manager) Enabled() bool {
	return m.client != nil && m.sealer.Enabled()
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status, backupID int64) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	m.hub.Broadcast(websocket.NewMessage(websocket.EntityBackup, string(s.State), backupID, nil))
}

// begin claims the running slot.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.InProgress {
		return ErrRunning
	}
	m.status.InProgress = true
	return nil
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 50
	}
	backups, err := m.backups.List(limit)
	if err != nil {
		return nil, err
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	return backups, nil
}

// RunNow takes a snapshot, seals it and uploads it. The returned row is
// completed or, if a step failed, marked failed with the error message.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	if !m.Enabled() {
		return nil, ErrDisabled
	}
	if err := m.begin(); err != nil {
		return nil, err
	}

	stamp := m.clock.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("backup-%s.db.enc", stamp)
	key := "backups/" + filename

	record, err := m.backups.Create(filename, key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()}, 0)
		return nil, fmt.Errorf("create backup record: %w", err)
	}
	m.setStatus(Status{State: StateRunning, InProgress: true}, record.ID)

	size, err := m.snapshotAndUpload(ctx, record.ID, key)
	if err != nil {
		m.backups.UpdateStatus(record.ID, model.BackupStatusFailed, err.Error())
		m.setStatus(Status{State: StateError, Error: err.Error()}, record.ID)
		m.logger.Error("backup failed", "backup_id", record.ID, "error", err)
		return m.backups.GetByID(record.ID)
	}

	if err := m.backups.UpdateCompleted(record.ID, size); err != nil {
		return nil, err
	}
	now := m.clock.Now()
	m.setStatus(Status{State: StateIdle, LastBackup: &now}, record.ID)
	m.logger.Info("backup completed", "backup_id", record.ID, "key", key, "size_bytes", size)
	return m.backups.GetByID(record.ID)
}

func (m *Manager) snapshotAndUpload(ctx context.Context, id int64, key string) (int64, error) {
	if err := m.backups.UpdateStatus(id, model.BackupStatusUploading, ""); err != nil {
		return 0, err
	}

	tmpDir, err := os.MkdirTemp("", "chorequest-backup-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	sealed := snapshot + ".enc"

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return 0, fmt.Errorf("wal checkpoint: %w", err)
	}
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return 0, fmt.Errorf("vacuum into: %w", err)
	}
	if err := m.sealer.SealFile(snapshot, sealed); err != nil {
		return 0, fmt.Errorf("seal snapshot: %w", err)
	}

	f, err := os.Open(sealed)
	if err != nil {
		return 0, fmt.Errorf("open sealed snapshot: %w", err)
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat sealed snapshot: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return stat.Size(), nil
}

// Download streams a sealed backup from storage.
func (m *Manager) Download(ctx context.Context, id int64) (io.ReadCloser, *model.Backup, error) {
	if m.client == nil {
		return nil, nil, ErrDisabled
	}
	record, err := m.backups.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return nil, nil, ErrNotFound
	}
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return out.Body, record, nil
}

// Prune deletes backups older than the retention period from the table and
// from storage. Storage failures are logged and skipped.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	before := m.clock.Now().AddDate(0, 0, -m.cfg.RetentionDays)
	keys, err := m.backups.DeleteOlderThan(before)
	if err != nil {
		return 0, fmt.Errorf("delete old backups: %w", err)
	}
	if m.client != nil {
		for _, key := range keys {
			if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(m.cfg.Bucket),
				Key:    aws.String(key),
			}); err != nil {
				m.logger.Warn("delete backup object failed", "key", key, "error", err)
			}
		}
	}
	if len(keys) > 0 {
		m.hub.Broadcast(websocket.NewMessage(websocket.EntityBackup, "pruned", 0, map[string]any{"count": len(keys)}))
	}
	return len(keys), nil
}

// Run is the scheduled entry point: back up, then prune.
func (m *Manager) Run(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
	if _, err := m.Prune(ctx); err != nil {
		m.logger.Error("backup prune failed", "error", err)
	}
}
