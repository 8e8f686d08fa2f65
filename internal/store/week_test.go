package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/worktracker/internal/model"
)

func TestWeekInsertIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	ws := NewWeekStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")

	start, _ := model.ParseDate("2024-12-16")
	w, err := ws.InsertIfAbsent(ctx, u.ID, start, start.AddDays(4), 0, 100)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if w.WeekStart.String() != "2024-12-16" {
		t.Errorf("week_start = %s, want 2024-12-16", w.WeekStart)
	}
	if w.WeekEnd.String() != "2024-12-20" {
		t.Errorf("week_end = %s, want 2024-12-20", w.WeekEnd)
	}
	if w.TotalPoints != 100 || w.OOODays != 0 {
		t.Errorf("capacity = %d/%d, want 100/0", w.TotalPoints, w.OOODays)
	}

	_, err = ws.InsertIfAbsent(ctx, u.ID, start, start.AddDays(4), 0, 100)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second insert err = %v, want ErrDuplicate", err)
	}

	var n int
	db.Get(&n, `SELECT COUNT(*) FROM work_weeks`)
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestWeekSameStartDifferentUsers(t *testing.T) {
	db := setupTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	a := createTestWeek(t, db, alice.ID, "2024-12-16")
	b := createTestWeek(t, db, bob.ID, "2024-12-16")
	if a.ID == b.ID {
		t.Error("expected distinct weeks per user")
	}
}

func TestWeekGetByUserAndStart(t *testing.T) {
	db := setupTestDB(t)
	ws := NewWeekStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	created := createTestWeek(t, db, u.ID, "2024-12-16")

	start, _ := model.ParseDate("2024-12-16")
	got, err := ws.GetByUserAndStart(ctx, u.ID, start)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("got %+v, want id %d", got, created.ID)
	}

	other, _ := model.ParseDate("2024-12-23")
	missing, err := ws.GetByUserAndStart(ctx, u.ID, other)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing week")
	}
}

func TestWeekUpdateCapacity(t *testing.T) {
	db := setupTestDB(t)
	ws := NewWeekStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	w := createTestWeek(t, db, u.ID, "2024-12-16")
	createTestItem(t, db, w.ID, "Big task", 50, model.StatusTodo)

	updated, err := ws.UpdateCapacity(ctx, w.ID, 2, 60)
	if err != nil {
		t.Fatalf("update capacity: %v", err)
	}
	if updated.OOODays != 2 || updated.TotalPoints != 60 {
		t.Errorf("got ooo=%d total=%d, want 2/60", updated.OOODays, updated.TotalPoints)
	}

	// 50 assigned does not fit in 40.
	_, err = ws.UpdateCapacity(ctx, w.ID, 3, 40)
	if !errors.Is(err, ErrCapacityConflict) {
		t.Fatalf("err = %v, want ErrCapacityConflict", err)
	}
	got, _ := ws.GetByID(ctx, w.ID)
	if got.OOODays != 2 || got.TotalPoints != 60 {
		t.Errorf("after conflict ooo=%d total=%d, want unchanged 2/60", got.OOODays, got.TotalPoints)
	}

	missing, err := ws.UpdateCapacity(ctx, 9999, 1, 80)
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing week")
	}
}

func TestWeekListByUser(t *testing.T) {
	db := setupTestDB(t)
	ws := NewWeekStore(db)
	ctx := context.Background()
	u := createTestUser(t, db, "alice@example.com")
	createTestWeek(t, db, u.ID, "2024-12-02")
	createTestWeek(t, db, u.ID, "2024-12-16")
	createTestWeek(t, db, u.ID, "2024-12-09")

	weeks, err := ws.ListByUser(ctx, u.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(weeks) != 2 {
		t.Fatalf("len = %d, want 2", len(weeks))
	}
	if weeks[0].WeekStart.String() != "2024-12-16" || weeks[1].WeekStart.String() != "2024-12-09" {
		t.Errorf("order = %s, %s; want newest first", weeks[0].WeekStart, weeks[1].WeekStart)
	}

	from, _ := model.ParseDate("2024-12-09")
	since, err := ws.ListSince(ctx, u.ID, from)
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(since) != 2 || since[0].WeekStart.String() != "2024-12-09" {
		t.Errorf("since = %+v, want 2 weeks starting 2024-12-09", since)
	}
}
