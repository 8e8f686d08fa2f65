package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/worktracker/internal/database"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
	"github.com/jmoiron/sqlx"
)

var testNow = time.Date(2024, 12, 18, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db    *sqlx.DB
	svc   *Service
	weeks *store.WeekStore
	items *store.ItemStore
	user  int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, err := store.NewUserStore(db).Create(context.Background(), "a@example.com", "hash", false)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f := &fixture{
		db:    db,
		weeks: store.NewWeekStore(db),
		items: store.NewItemStore(db),
		user:  u.ID,
	}
	f.svc = NewService(f.weeks, f.items, store.NewReportStore(db))
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) week(t *testing.T, start string) *model.WorkWeek {
	t.Helper()
	d, err := model.ParseDate(start)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	w, err := f.weeks.InsertIfAbsent(context.Background(), f.user, d, d.AddDays(4), 0, 100)
	if err != nil {
		t.Fatalf("insert week: %v", err)
	}
	return w
}

func (f *fixture) item(t *testing.T, weekID int64, typ model.TaskType, status model.TaskStatus, points int, completion *int) {
	t.Helper()
	_, err := f.items.Create(context.Background(), weekID, model.WorkItemInput{
		Type:             typ,
		Title:            string(typ) + " " + string(status),
		AssignedPoints:   points,
		CompletionPoints: completion,
		Status:           status,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
}

func TestClampWeeks(t *testing.T) {
	tests := map[int]int{0: 12, -3: 1, 1: 1, 12: 12, 52: 52, 100: 52}
	for in, want := range tests {
		if got := ClampWeeks(in); got != want {
			t.Errorf("ClampWeeks(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	old := f.week(t, "2024-12-02")
	cur := f.week(t, "2024-12-16")
	fifteen := 15

	f.item(t, old.ID, model.TaskPlanned, model.StatusInProgress, 10, nil)
	f.item(t, old.ID, model.TaskAdhoc, model.StatusTodo, 5, nil)
	f.item(t, old.ID, model.TaskUnplanned, model.StatusCompleted, 20, &fifteen)
	f.item(t, cur.ID, model.TaskPlanned, model.StatusTodo, 30, nil)

	sum, err := f.svc.Summary(ctx, f.user, 0)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Weeks != DefaultWeeks {
		t.Errorf("weeks = %d, want %d", sum.Weeks, DefaultWeeks)
	}

	if len(sum.PointsTrend) != 2 {
		t.Fatalf("trend len = %d, want 2", len(sum.PointsTrend))
	}
	first := sum.PointsTrend[0]
	if first.WeekStart != "2024-12-02" || first.Used != 35 || first.Remaining != 65 || first.Completed != 15 {
		t.Errorf("first trend point = %+v", first)
	}
	if first.Week != "12/02" {
		t.Errorf("week label = %q, want 12/02", first.Week)
	}

	if len(sum.TypeDistribution) != 3 {
		t.Fatalf("type slices = %d, want 3", len(sum.TypeDistribution))
	}
	if got := sum.TypeDistribution[0]; got.Type != model.TaskPlanned || got.Count != 2 || got.Points != 40 {
		t.Errorf("planned slice = %+v", got)
	}

	if len(sum.StatusBreakdown) != len(model.AllTaskStatuses()) {
		t.Errorf("status slices = %d, want %d", len(sum.StatusBreakdown), len(model.AllTaskStatuses()))
	}
	for _, s := range sum.StatusBreakdown {
		if s.Status == model.StatusTodo && s.Count != 2 {
			t.Errorf("todo count = %d, want 2", s.Count)
		}
		if s.Status == model.StatusAbandoned && s.Count != 0 {
			t.Errorf("abandoned count = %d, want 0", s.Count)
		}
	}

	if len(sum.CarryOver) != 1 {
		t.Fatalf("carry-over len = %d, want 1", len(sum.CarryOver))
	}
	if co := sum.CarryOver[0]; co.Status != model.StatusInProgress || co.WeeksOld != 2 || co.Week != "2024-12-02" {
		t.Errorf("carry-over = %+v", co)
	}
}

func TestSummaryLookBack(t *testing.T) {
	f := setup(t)
	f.week(t, "2024-10-07")
	f.week(t, "2024-12-09")

	sum, err := f.svc.Summary(context.Background(), f.user, 2)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(sum.PointsTrend) != 1 {
		t.Errorf("trend len = %d, want 1", len(sum.PointsTrend))
	}
}

func TestSidebarMissingWeek(t *testing.T) {
	f := setup(t)
	sb, err := f.svc.Sidebar(context.Background(), f.user, testNow)
	if err != nil {
		t.Fatalf("Sidebar: %v", err)
	}
	if sb.TotalPoints != 100 || sb.Remaining != 100 || sb.Used != 0 {
		t.Errorf("sidebar = %+v", sb)
	}
	if sb.WeekStart != "2024-12-16" || sb.WeekEnd != "2024-12-20" {
		t.Errorf("range = %s..%s", sb.WeekStart, sb.WeekEnd)
	}

	var n int
	if err := f.db.Get(&n, `SELECT COUNT(*) FROM work_weeks`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("Sidebar created %d weeks, want 0", n)
	}
}

func TestSidebar(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	w := f.week(t, "2024-12-16")
	if _, err := f.weeks.UpdateCapacity(ctx, w.ID, 2, 60); err != nil {
		t.Fatalf("UpdateCapacity: %v", err)
	}
	f.item(t, w.ID, model.TaskPlanned, model.StatusTodo, 20, nil)
	f.item(t, w.ID, model.TaskAdhoc, model.StatusTodo, 10, nil)

	sb, err := f.svc.Sidebar(ctx, f.user, testNow)
	if err != nil {
		t.Fatalf("Sidebar: %v", err)
	}
	if sb.TotalPoints != 60 || sb.OOODays != 2 {
		t.Errorf("total=%d ooo=%d, want 60 and 2", sb.TotalPoints, sb.OOODays)
	}
	if sb.Used != 30 || sb.Remaining != 30 || sb.Percent != 50 {
		t.Errorf("used=%d remaining=%d percent=%d", sb.Used, sb.Remaining, sb.Percent)
	}
	if sb.ByType["PLANNED"] != 20 || sb.ByType["ADHOC"] != 10 || sb.ByType["UNPLANNED"] != 0 {
		t.Errorf("by type = %v", sb.ByType)
	}
}

func TestWeeksBetween(t *testing.T) {
	monday, _ := model.ParseDate("2024-12-16")
	start, _ := model.ParseDate("2024-11-25")
	if got := WeeksBetween(start, monday); got != 3 {
		t.Errorf("WeeksBetween = %d, want 3", got)
	}
	if got := WeeksBetween(monday.AddDays(7), monday); got != 0 {
		t.Errorf("future WeeksBetween = %d, want 0", got)
	}
}
