package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukerupert/worktracker/internal/model"
	"github.com/jmoiron/sqlx"
)

// ReportFilter narrows report and export queries. Zero values are ignored.
type ReportFilter struct {
	StartDate model.Date
	EndDate   model.Date
	Type      model.TaskType
	Status    model.TaskStatus
}

type ReportStore struct {
	db *sqlx.DB
}

func NewReportStore(db *sqlx.DB) *ReportStore {
	return &ReportStore{db: db}
}

// Search returns the user's items matching f, newest week first.
// StartDate bounds week_start from below and EndDate bounds week_end from above.
func (s *ReportStore) Search(ctx context.Context, userID int64, f ReportFilter) ([]model.ItemWithWeek, error) {
	where := []string{"w.user_id = ?"}
	args := []any{userID}
	if !f.StartDate.IsZero() {
		where = append(where, "w.week_start >= ?")
		args = append(args, f.StartDate)
	}
	if !f.EndDate.IsZero() {
		where = append(where, "w.week_end <= ?")
		args = append(args, f.EndDate)
	}
	if f.Type != "" {
		where = append(where, "i.type = ?")
		args = append(args, f.Type)
	}
	if f.Status != "" {
		where = append(where, "i.status = ?")
		args = append(args, f.Status)
	}

	query := `SELECT ` + itemWithWeekCols + `
		FROM work_items i JOIN work_weeks w ON w.id = i.week_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY w.week_start DESC, i.created_at, i.id`

	var items []model.ItemWithWeek
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return items, nil
}

// WeekPoints is one row of the points trend.
type WeekPoints struct {
	WeekStart       model.Date `db:"week_start" json:"week_start"`
	TotalPoints     int        `db:"total_points" json:"total_points"`
	OOODays         int        `db:"ooo_days" json:"ooo_days"`
	AssignedPoints  int        `db:"assigned_points" json:"assigned_points"`
	CompletedPoints int        `db:"completed_points" json:"completed_points"`
}

// PointsByWeek returns assigned and completed points per week since from, oldest first.
// Completed points count completion_points of COMPLETED items.
func (s *ReportStore) PointsByWeek(ctx context.Context, userID int64, from model.Date) ([]WeekPoints, error) {
	var rows []WeekPoints
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT w.week_start, w.total_points, w.ooo_days,
			COALESCE(SUM(i.assigned_points), 0) AS assigned_points,
			COALESCE(SUM(CASE WHEN i.status = ? THEN COALESCE(i.completion_points, 0) ELSE 0 END), 0) AS completed_points
		 FROM work_weeks w LEFT JOIN work_items i ON i.week_id = w.id
		 WHERE w.user_id = ? AND w.week_start >= ?
		 GROUP BY w.id, w.week_start, w.total_points, w.ooo_days
		 ORDER BY w.week_start`),
		model.StatusCompleted, userID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("points by week: %w", err)
	}
	return rows, nil
}

// TypeTotal aggregates items of one task type.
type TypeTotal struct {
	Type   model.TaskType `db:"type" json:"type"`
	Count  int            `db:"count" json:"count"`
	Points int            `db:"points" json:"points"`
}

func (s *ReportStore) TypeDistribution(ctx context.Context, userID int64, from model.Date) ([]TypeTotal, error) {
	var rows []TypeTotal
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT i.type, COUNT(i.id) AS count, COALESCE(SUM(i.assigned_points), 0) AS points
		 FROM work_items i JOIN work_weeks w ON w.id = i.week_id
		 WHERE w.user_id = ? AND w.week_start >= ?
		 GROUP BY i.type`),
		userID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("type distribution: %w", err)
	}
	return rows, nil
}

// StatusCount is the number of items in one status.
type StatusCount struct {
	Status model.TaskStatus `db:"status" json:"status"`
	Count  int              `db:"count" json:"count"`
}

func (s *ReportStore) StatusBreakdown(ctx context.Context, userID int64, from model.Date) ([]StatusCount, error) {
	var rows []StatusCount
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT i.status, COUNT(i.id) AS count
		 FROM work_items i JOIN work_weeks w ON w.id = i.week_id
		 WHERE w.user_id = ? AND w.week_start >= ?
		 GROUP BY i.status`),
		userID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("status breakdown: %w", err)
	}
	return rows, nil
}
