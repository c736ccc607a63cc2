// Package backup takes encrypted snapshots of the SQLite database and
// uploads them to S3-compatible storage. Snapshots are taken after a WAL
// checkpoint so the copied file is complete on its own.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/emiller/starjar/internal/model"
	"github.com/emiller/starjar/internal/store"
)

// s3Client is the subset of the S3 API the manager uses, an interface for
// testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. A zero Interval disables the
// scheduled loop; RunNow still works.
type Config struct {
	S3         S3Config
	DBPath     string
	Passphrase string
	Interval   time.Duration
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status is the manager's current state, pushed through the status callback
// on every change.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type StatusCallback func(Status)

// Manager runs encrypted database snapshots, on demand and on a schedule.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db     *sql.DB
	store  *store.BackupStore
	client s3Client
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, callback StatusCallback, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:      cfg,
		db:       db,
		store:    bs,
		callback: callback,
		logger:   logger,
		status:   Status{State: StateDisabled},
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
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

// Enabled reports whether the manager has complete S3 and passphrase
// configuration.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled snapshot loop. No-op when disabled or when no
// interval is configured.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.client == nil || m.cfg.Interval <= 0 {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RunNow(ctx, "schedule"); err != nil {
					m.logger.Error("scheduled backup failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the scheduled loop and waits for it to exit.
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

// RunNow checkpoints the WAL, copies the database, encrypts the copy, and
// uploads it, recording the snapshot in the backups table on success.
// triggeredBy names the origin ("manual" or "schedule").
func (m *Manager) RunNow(ctx context.Context, triggeredBy string) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	dbPath := m.cfg.DBPath
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("backup not configured")
	}

	m.setStatus(Status{State: StateRunning})

	fail := func(stage string, err error) (*model.Backup, error) {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("%s: %w", stage, err)
	}

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fail("wal checkpoint", err)
	}

	plaintext, err := os.ReadFile(dbPath)
	if err != nil {
		return fail("read database", err)
	}

	encrypted, err := Encrypt(plaintext, passphrase)
	if err != nil {
		return fail("encrypt snapshot", err)
	}

	objectKey := fmt.Sprintf("starjar/%s.db.enc", time.Now().UTC().Format("2006-01-02T150405Z"))
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(encrypted),
		ContentLength: aws.Int64(int64(len(encrypted))),
	})
	if err != nil {
		return fail("upload snapshot", err)
	}

	record, err := m.store.Create(objectKey, int64(len(encrypted)), triggeredBy)
	if err != nil {
		return fail("record snapshot", err)
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup uploaded", "object_key", objectKey, "size_bytes", len(encrypted), "triggered_by", triggeredBy)
	return record, nil
}

// Fetch downloads and decrypts a recorded snapshot. Callers restore by
// replacing the database file and restarting the process.
func (m *Manager) Fetch(ctx context.Context, backupID int64) ([]byte, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	passphrase := m.cfg.Passphrase
	m.mu.RUnlock()

	if client == nil {
		return nil, fmt.Errorf("backup not configured")
	}

	record, err := m.store.GetByID(backupID)
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("backup not found")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.ObjectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download snapshot: %w", err)
	}
	defer result.Body.Close()

	encrypted, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return Decrypt(encrypted, passphrase)
}
