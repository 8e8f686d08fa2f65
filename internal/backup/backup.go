// Package backup snapshots the SQLite database, encrypts it and stores it in
// S3-compatible object storage.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dukerupert/worktracker/internal/database"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotConfigured = errors.New("backups are not configured")
	ErrInProgress    = errors.New("a backup is already running")
	ErrNotFound      = errors.New("backup not found")
)

const keyPrefix = "worktracker/"

// s3Client is the subset of *s3.Client the manager uses.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) configured() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

type Config struct {
	S3            S3Config
	Passphrase    string
	RetentionDays int
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called on every state change.
type StatusCallback func(Status)

type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	db     *sqlx.DB
	store  *store.BackupStore
	client s3Client

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager returns a manager that is disabled unless S3 and a passphrase are
// configured and db is SQLite.
func NewManager(cfg Config, db *sqlx.DB, bs *store.BackupStore, callback StatusCallback, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:      cfg,
		db:       db,
		store:    bs,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}

	switch {
	case db == nil || !database.IsSQLite(db):
		logger.Info("backups disabled: only SQLite databases can be snapshotted")
	case !cfg.S3.configured() || cfg.Passphrase == "":
		logger.Info("backups disabled: S3 bucket, credentials or passphrase missing")
	default:
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
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

func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start runs retention cleanup once a day until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup", "error", err)
				}
			}
		}
	}()
}

func (m *Manager) Stop() {
	m.mu.RLock()
	cancel, done := m.cancel, m.done
	m.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

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

// RunNow takes a backup synchronously. Only one backup runs at a time.
func (m *Manager) RunNow(ctx context.Context) (*model.Backup, error) {
	m.mu.Lock()
	if m.client == nil {
		m.mu.Unlock()
		return nil, ErrNotConfigured
	}
	if m.status.InProgress {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	last := m.status.LastBackup
	m.status = Status{State: StateRunning, InProgress: true, LastBackup: last}
	client, bucket, passphrase := m.client, m.cfg.S3.Bucket, m.cfg.Passphrase
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(m.Status())
	}

	record, err := m.runBackup(ctx, client, bucket, passphrase)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error(), LastBackup: last})
		return nil, err
	}
	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup completed", "backup_id", record.ID, "key", record.S3Key, "bytes", record.SizeBytes)
	return record, nil
}

func (m *Manager) runBackup(ctx context.Context, client s3Client, bucket, passphrase string) (*model.Backup, error) {
	filename := fmt.Sprintf("worktracker-%s.db.enc", time.Now().UTC().Format("2006-01-02T150405Z"))
	record, err := m.store.Create(ctx, filename, keyPrefix+filename)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	fail := func(err error) (*model.Backup, error) {
		if uerr := m.store.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("mark backup failed", "backup_id", record.ID, "error", uerr)
		}
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "worktracker-backup-")
	if err != nil {
		return fail(fmt.Errorf("create temp dir: %w", err))
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, "snapshot.db")
	encrypted := snapshot + ".enc"

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return fail(fmt.Errorf("snapshot database: %w", err))
	}
	if err := EncryptFile(snapshot, encrypted, passphrase); err != nil {
		return fail(fmt.Errorf("encrypt snapshot: %w", err))
	}

	if err := m.store.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, ""); err != nil {
		return fail(err)
	}
	f, err := os.Open(encrypted)
	if err != nil {
		return fail(fmt.Errorf("open encrypted snapshot: %w", err))
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return fail(fmt.Errorf("stat encrypted snapshot: %w", err))
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(record.S3Key),
		Body:          f,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return fail(fmt.Errorf("upload to s3: %w", err))
	}

	if err := m.store.UpdateCompleted(ctx, record.ID, stat.Size()); err != nil {
		return nil, err
	}
	record.Status = model.BackupStatusCompleted
	record.SizeBytes = stat.Size()
	return record, nil
}

func (m *Manager) object(ctx context.Context, backupID int64) (io.ReadCloser, *model.Backup, error) {
	m.mu.RLock()
	client, bucket := m.client, m.cfg.S3.Bucket
	m.mu.RUnlock()
	if client == nil {
		return nil, nil, ErrNotConfigured
	}

	record, err := m.store.GetByID(ctx, backupID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return nil, nil, ErrNotFound
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return out.Body, record, nil
}

// Download streams the encrypted backup. The caller closes the reader.
func (m *Manager) Download(ctx context.Context, backupID int64) (io.ReadCloser, *model.Backup, error) {
	return m.object(ctx, backupID)
}

// Restore downloads and decrypts a backup into dstPath after an integrity
// check. The running database is left alone; swap the file in while the
// server is stopped.
func (m *Manager) Restore(ctx context.Context, backupID int64, dstPath string) error {
	body, _, err := m.object(ctx, backupID)
	if err != nil {
		return err
	}
	defer body.Close()

	m.mu.RLock()
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	tmp := dstPath + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create restore file: %w", err)
	}
	if err := Decrypt(out, body, passphrase); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close restore file: %w", err)
	}

	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dstPath)
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sqlx.Open(database.DriverSQLite, path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.GetContext(ctx, &result, `PRAGMA integrity_check`); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Cleanup removes backups older than the retention window from the table and the bucket.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.RLock()
	client, bucket, days := m.client, m.cfg.S3.Bucket, m.cfg.RetentionDays
	m.mu.RUnlock()
	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -days)
	keys, err := m.store.DeleteOlderThan(ctx, before)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		m.logger.Info("expired backups removed", "count", len(keys))
	}
	return nil
}
