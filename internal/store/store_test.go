package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/worktracker/internal/database"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/jmoiron/sqlx"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sqlx.DB, email string) *model.User {
	t.Helper()
	u, err := NewUserStore(db).Create(context.Background(), email, "hash", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestWeek(t *testing.T, db *sqlx.DB, userID int64, start string) *model.WorkWeek {
	t.Helper()
	d, err := model.ParseDate(start)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	w, err := NewWeekStore(db).InsertIfAbsent(context.Background(), userID, d, d.AddDays(4), 0, 100)
	if err != nil {
		t.Fatalf("insert week: %v", err)
	}
	return w
}

func createTestItem(t *testing.T, db *sqlx.DB, weekID int64, title string, points int, status model.TaskStatus) *model.WorkItem {
	t.Helper()
	it, err := NewItemStore(db).Create(context.Background(), weekID, model.WorkItemInput{
		Type:           model.TaskPlanned,
		Title:          title,
		AssignedPoints: points,
		Status:         status,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

// withNow pins nowFunc for the duration of the test.
func withNow(t *testing.T, now time.Time) {
	t.Helper()
	prev := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = prev })
}
