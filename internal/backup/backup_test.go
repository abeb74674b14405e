package backup

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/database"
	"github.com/dukerupert/chorequest/internal/model"
	"github.com/dukerupert/chorequest/internal/objectstore"
	"github.com/dukerupert/chorequest/internal/objectstore/objectstoretest"
	"github.com/dukerupert/chorequest/internal/secret"
	"github.com/dukerupert/chorequest/internal/store"
)

func setup(t *testing.T, client objectstore.Client, passphrase string) (*Manager, *sql.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "quest.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(Config{Bucket: "backups-bucket", RetentionDays: 30}, db, client,
		secret.NewSealer(passphrase), clock.New(time.UTC), nil, logger)
	return m, db
}

func TestManagerStateLifecycle(t *testing.T) {
	m, _ := setup(t, nil, "pass")
	if m.Status().State != StateDisabled {
		t.Errorf("no storage: state = %q, want %q", m.Status().State, StateDisabled)
	}

	m, _ = setup(t, objectstoretest.NewMemory(), "")
	if m.Status().State != StateDisabled {
		t.Errorf("no passphrase: state = %q, want %q", m.Status().State, StateDisabled)
	}
	if _, err := m.RunNow(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("RunNow disabled: err = %v, want ErrDisabled", err)
	}

	m, _ = setup(t, objectstoretest.NewMemory(), "pass")
	if m.Status().State != StateIdle {
		t.Errorf("configured: state = %q, want %q", m.Status().State, StateIdle)
	}
}

func TestRunNowUploadsSealedSnapshot(t *testing.T) {
	mem := objectstoretest.NewMemory()
	m, db := setup(t, mem, "backup-pass")

	members := store.NewMemberStore(db)
	if _, err := members.Create("Ana", "", nil); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	b, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Status != model.BackupStatusCompleted || b.SizeBytes == 0 {
		t.Fatalf("backup = %+v, want completed with size", b)
	}
	if m.Status().State != StateIdle || m.Status().LastBackup == nil {
		t.Errorf("status = %+v, want idle with last backup", m.Status())
	}

	sealed, _, ok := mem.Object("backups-bucket", b.S3Key)
	if !ok {
		t.Fatalf("object %s not uploaded; have %v", b.S3Key, mem.Keys())
	}

	// The sealed object opens into a database holding the seeded row.
	dir := t.TempDir()
	enc := filepath.Join(dir, "b.db.enc")
	restored := filepath.Join(dir, "restored.db")
	os.WriteFile(enc, sealed, 0600)
	if err := secret.NewSealer("backup-pass").OpenFile(enc, restored); err != nil {
		t.Fatalf("open sealed backup: %v", err)
	}

	rdb, err := sql.Open("sqlite", restored)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer rdb.Close()
	var n int
	if err := rdb.QueryRow(`SELECT COUNT(*) FROM family_members`).Scan(&n); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if n != 1 {
		t.Errorf("restored members = %d, want 1", n)
	}
}

func TestRunNowRecordsUploadFailure(t *testing.T) {
	mem := objectstoretest.NewMemory()
	mem.PutErr = errors.New("bucket offline")
	m, _ := setup(t, mem, "pass")

	b, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Status != model.BackupStatusFailed || b.ErrorMessage == "" {
		t.Errorf("backup = %+v, want failed with message", b)
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want error", m.Status().State)
	}
}

func TestPrune(t *testing.T) {
	mem := objectstoretest.NewMemory()
	m, db := setup(t, mem, "pass")
	ctx := context.Background()

	old, err := m.RunNow(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	past := time.Now().UTC().AddDate(0, 0, -40)
	if _, err := db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`, past, old.ID); err != nil {
		t.Fatalf("age backup: %v", err)
	}

	n, err := m.Prune(ctx)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, _, ok := mem.Object("backups-bucket", old.S3Key); ok {
		t.Error("old object still in storage")
	}
	list, _ := m.List(ctx, 0)
	if len(list) != 0 {
		t.Errorf("list = %d rows, want 0", len(list))
	}
}

func TestDownload(t *testing.T) {
	mem := objectstoretest.NewMemory()
	m, _ := setup(t, mem, "pass")
	ctx := context.Background()

	if _, _, err := m.Download(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}

	b, _ := m.RunNow(ctx)
	body, record, err := m.Download(ctx, b.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if int64(len(data)) != record.SizeBytes {
		t.Errorf("downloaded %d bytes, want %d", len(data), record.SizeBytes)
	}
}
