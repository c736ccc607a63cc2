package backup

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/emiller/starjar/internal/database"
	"github.com/emiller/starjar/internal/store"
)

// fakeS3 records uploads in memory.
type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data := f.objects[*input.Key]
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func newTestManager(t *testing.T) (*Manager, *fakeS3, *store.BackupStore) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "starjar.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bs := store.NewBackupStore(db)
	m := NewManager(Config{
		S3:         S3Config{Bucket: "bucket", AccessKey: "k", SecretKey: "s"},
		DBPath:     dbPath,
		Passphrase: "family-passphrase",
	}, db, bs, nil, slog.Default())

	fake := &fakeS3{}
	m.client = fake
	return m, fake, bs
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	m, fake, bs := newTestManager(t)

	record, err := m.RunNow(context.Background(), "manual")
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}
	if record.TriggeredBy != "manual" {
		t.Errorf("triggered_by = %q, want manual", record.TriggeredBy)
	}

	uploaded, ok := fake.objects[record.ObjectKey]
	if !ok {
		t.Fatalf("no object uploaded under %q", record.ObjectKey)
	}
	if int64(len(uploaded)) != record.SizeBytes {
		t.Errorf("recorded size %d, uploaded %d bytes", record.SizeBytes, len(uploaded))
	}

	// The payload must decrypt back to a SQLite file.
	plaintext, err := Decrypt(uploaded, "family-passphrase")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.HasPrefix(plaintext, []byte("SQLite format 3")) {
		t.Error("decrypted snapshot is not a SQLite database")
	}

	latest, err := bs.Latest()
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.ID != record.ID {
		t.Errorf("Latest returned %+v, want id %d", latest, record.ID)
	}
}

func TestFetchRoundTrip(t *testing.T) {
	m, _, _ := newTestManager(t)

	record, err := m.RunNow(context.Background(), "manual")
	if err != nil {
		t.Fatalf("RunNow failed: %v", err)
	}

	plaintext, err := m.Fetch(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !bytes.HasPrefix(plaintext, []byte("SQLite format 3")) {
		t.Error("fetched snapshot is not a SQLite database")
	}
}

func TestRunNowDisabledWithoutConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "starjar.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(Config{DBPath: dbPath}, db, store.NewBackupStore(db), nil, slog.Default())
	if m.Enabled() {
		t.Error("manager should be disabled without S3 config")
	}
	if _, err := m.RunNow(context.Background(), "manual"); err == nil {
		t.Error("expected error from RunNow when disabled")
	}
}
