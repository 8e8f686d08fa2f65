package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/worktracker/internal/model"
	"github.com/jmoiron/sqlx"
)

type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemCols = `id, week_id, type, title, start_date, end_date, assigned_points, completion_points,
	planned_work, actual_work, next_week_plan, document_url, status, created_at, updated_at`

// itemWithWeekCols selects item columns qualified by alias i plus the week range from w.
const itemWithWeekCols = `i.id, i.week_id, i.type, i.title, i.start_date, i.end_date, i.assigned_points,
	i.completion_points, i.planned_work, i.actual_work, i.next_week_plan, i.document_url, i.status,
	i.created_at, i.updated_at, w.week_start, w.week_end`

// Create inserts an item if the week's assigned total stays within its
// total_points. It returns ErrCapacityConflict when it would not, and (nil, nil)
// when the week does not exist.
func (s *ItemStore) Create(ctx context.Context, weekID int64, in model.WorkItemInput) (*model.WorkItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := fitsWeek(ctx, tx, weekID, 0, in.AssignedPoints)
	if err != nil || !ok {
		return nil, err
	}

	now := nowFunc()
	var it model.WorkItem
	err = tx.GetContext(ctx, &it, tx.Rebind(
		`INSERT INTO work_items (week_id, type, title, start_date, end_date, assigned_points, completion_points,
			planned_work, actual_work, next_week_plan, document_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+itemCols),
		weekID, in.Type, in.Title, in.StartDate, in.EndDate, in.AssignedPoints, in.CompletionPoints,
		in.PlannedWork, in.ActualWork, in.NextWeekPlan, in.DocumentURL, in.Status, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit item: %w", err)
	}
	return &it, nil
}

// fitsWeek locks the week row for the rest of tx and reports whether adding
// points, with excludingID's own points set aside, stays within total_points.
// Concurrent writers to the same week queue on the lock. A missing week gives
// (false, nil).
func fitsWeek(ctx context.Context, tx *sqlx.Tx, weekID, excludingID int64, points int) (bool, error) {
	var total int
	err := tx.GetContext(ctx, &total, tx.Rebind(
		`UPDATE work_weeks SET updated_at = updated_at WHERE id = ? RETURNING total_points`), weekID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock week: %w", err)
	}

	var used int
	err = tx.GetContext(ctx, &used, tx.Rebind(
		`SELECT COALESCE(SUM(assigned_points), 0) FROM work_items WHERE week_id = ? AND id <> ?`),
		weekID, excludingID,
	)
	if err != nil {
		return false, fmt.Errorf("sum assigned points: %w", err)
	}
	if used+points > total {
		return false, ErrCapacityConflict
	}
	return true, nil
}

func (s *ItemStore) GetByID(ctx context.Context, id int64) (*model.WorkItem, error) {
	var it model.WorkItem
	err := s.db.GetContext(ctx, &it, s.db.Rebind(`SELECT `+itemCols+` FROM work_items WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &it, nil
}

// ListByWeek returns the week's items in creation order.
func (s *ItemStore) ListByWeek(ctx context.Context, weekID int64) ([]model.WorkItem, error) {
	var items []model.WorkItem
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(
		`SELECT `+itemCols+` FROM work_items WHERE week_id = ? ORDER BY created_at, id`), weekID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Update overwrites the editable fields under the same capacity rule as
// Create, with the item's current points set aside. A missing item returns
// (nil, nil).
func (s *ItemStore) Update(ctx context.Context, id int64, in model.WorkItemInput) (*model.WorkItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var weekID int64
	err = tx.GetContext(ctx, &weekID, tx.Rebind(`SELECT week_id FROM work_items WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item week: %w", err)
	}
	ok, err := fitsWeek(ctx, tx, weekID, id, in.AssignedPoints)
	if err != nil || !ok {
		return nil, err
	}

	var it model.WorkItem
	err = tx.GetContext(ctx, &it, tx.Rebind(
		`UPDATE work_items SET type = ?, title = ?, start_date = ?, end_date = ?, assigned_points = ?,
			completion_points = ?, planned_work = ?, actual_work = ?, next_week_plan = ?, document_url = ?,
			status = ?, updated_at = ?
		 WHERE id = ?
		 RETURNING `+itemCols),
		in.Type, in.Title, in.StartDate, in.EndDate, in.AssignedPoints, in.CompletionPoints,
		in.PlannedWork, in.ActualWork, in.NextWeekPlan, in.DocumentURL, in.Status, nowFunc(), id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit item: %w", err)
	}
	return &it, nil
}

func (s *ItemStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM work_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// SumAssigned totals assigned points in the week, skipping excludingID when non-zero.
func (s *ItemStore) SumAssigned(ctx context.Context, weekID, excludingID int64) (int, error) {
	var total int
	err := s.db.GetContext(ctx, &total, s.db.Rebind(
		`SELECT COALESCE(SUM(assigned_points), 0) FROM work_items WHERE week_id = ? AND id <> ?`),
		weekID, excludingID,
	)
	if err != nil {
		return 0, fmt.Errorf("sum assigned points: %w", err)
	}
	return total, nil
}

// PendingBefore returns the user's unfinished items (TODO, IN_PROGRESS, DELAYED)
// from weeks that ended before the given date, newest first.
func (s *ItemStore) PendingBefore(ctx context.Context, userID int64, before model.Date) ([]model.ItemWithWeek, error) {
	var items []model.ItemWithWeek
	err := s.db.SelectContext(ctx, &items, s.db.Rebind(
		`SELECT `+itemWithWeekCols+`
		 FROM work_items i JOIN work_weeks w ON w.id = i.week_id
		 WHERE w.user_id = ? AND w.week_end < ? AND i.status IN (?, ?, ?)
		 ORDER BY i.created_at DESC, i.id DESC`),
		userID, before, model.StatusTodo, model.StatusInProgress, model.StatusDelayed,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	return items, nil
}
