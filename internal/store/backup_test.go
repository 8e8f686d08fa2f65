package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/worktracker/internal/model"
)

func TestBackupCreate(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))

	b, err := bs.Create(context.Background(), "backup-2024.db.enc", "backups/backup-2024.db.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if b.Filename != "backup-2024.db.enc" {
		t.Errorf("filename = %q, want %q", b.Filename, "backup-2024.db.enc")
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}
	if !b.StartedAt.Valid {
		t.Error("expected started_at to be set")
	}
}

func TestBackupUpdateStatus(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()
	b, _ := bs.Create(ctx, "a.db.enc", "backups/a.db.enc")

	if err := bs.UpdateStatus(ctx, b.ID, model.BackupStatusFailed, "upload failed"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := bs.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.BackupStatusFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorMessage.String != "upload failed" {
		t.Errorf("error_message = %q, want %q", got.ErrorMessage.String, "upload failed")
	}
}

func TestBackupUpdateCompleted(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()
	b, _ := bs.Create(ctx, "a.db.enc", "backups/a.db.enc")

	if err := bs.UpdateCompleted(ctx, b.ID, 4096); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	got, _ := bs.GetByID(ctx, b.ID)
	if got.Status != model.BackupStatusCompleted || got.SizeBytes != 4096 {
		t.Errorf("got status=%q size=%d, want completed/4096", got.Status, got.SizeBytes)
	}
	if !got.CompletedAt.Valid {
		t.Error("expected completed_at to be set")
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2024, 11, 1, 3, 0, 0, 0, time.UTC)
	withNow(t, base)
	bs.Create(ctx, "old.db.enc", "backups/old.db.enc")
	withNow(t, base.AddDate(0, 0, 40))
	bs.Create(ctx, "new.db.enc", "backups/new.db.enc")

	keys, err := bs.DeleteOlderThan(ctx, base.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("delete older: %v", err)
	}
	if len(keys) != 1 || keys[0] != "backups/old.db.enc" {
		t.Errorf("keys = %v, want [backups/old.db.enc]", keys)
	}

	list, _ := bs.List(ctx, 10)
	if len(list) != 1 || list[0].Filename != "new.db.enc" {
		t.Errorf("remaining = %+v, want only new.db.enc", list)
	}
}
