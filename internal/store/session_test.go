package store

import (
	"context"
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, 7*24*time.Hour)
	u := createTestUser(t, db, "alice@example.com")

	sess, err := ss.Create(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.UserID != u.ID {
		t.Errorf("user_id = %d, want %d", sess.UserID, u.ID)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != 7*24*time.Hour {
		t.Errorf("ttl = %v, want 168h", got)
	}
}

func TestSessionGetByToken(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	created, _ := ss.Create(ctx, u.ID)

	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.ID != created.ID {
		t.Errorf("id = %d, want %d", sess.ID, created.ID)
	}

	missing, err := ss.GetByToken(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent token")
	}
}

func TestSessionExpiry(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	start := time.Date(2024, 12, 16, 9, 0, 0, 0, time.UTC)
	withNow(t, start)
	created, _ := ss.Create(ctx, u.ID)

	withNow(t, start.Add(2*time.Hour))
	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if sess != nil {
		t.Error("expected expired session to be ignored")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteByUserID(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	ss.Create(ctx, u.ID)
	ss.Create(ctx, u.ID)

	if err := ss.DeleteByUserID(ctx, u.ID); err != nil {
		t.Fatalf("delete by user id: %v", err)
	}

	var count int
	db.Get(&count, `SELECT COUNT(*) FROM sessions WHERE user_id = ?`, u.ID)
	if count != 0 {
		t.Errorf("expected 0 sessions, got %d", count)
	}
}

func TestSessionDelete(t *testing.T) {
	db := setupTestDB(t)
	ss := NewSessionStore(db, time.Hour)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	created, _ := ss.Create(ctx, u.ID)

	if err := ss.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	sess, _ := ss.GetByToken(ctx, created.Token)
	if sess != nil {
		t.Error("expected nil after delete")
	}
}
