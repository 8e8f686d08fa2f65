package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/worktracker/internal/model"
	"github.com/jmoiron/sqlx"
)

type WeekStore struct {
	db *sqlx.DB
}

func NewWeekStore(db *sqlx.DB) *WeekStore {
	return &WeekStore{db: db}
}

const weekCols = `id, user_id, week_start, week_end, total_points, ooo_days, created_at, updated_at`

func (s *WeekStore) GetByID(ctx context.Context, id int64) (*model.WorkWeek, error) {
	var w model.WorkWeek
	err := s.db.GetContext(ctx, &w, s.db.Rebind(`SELECT `+weekCols+` FROM work_weeks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get week: %w", err)
	}
	return &w, nil
}

func (s *WeekStore) GetByUserAndStart(ctx context.Context, userID int64, weekStart model.Date) (*model.WorkWeek, error) {
	var w model.WorkWeek
	err := s.db.GetContext(ctx, &w, s.db.Rebind(
		`SELECT `+weekCols+` FROM work_weeks WHERE user_id = ? AND week_start = ?`),
		userID, weekStart,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get week by start: %w", err)
	}
	return &w, nil
}

// InsertIfAbsent inserts a week unless (user_id, week_start) already exists.
// A conflicting row yields ErrDuplicate; the caller re-reads the winner.
func (s *WeekStore) InsertIfAbsent(ctx context.Context, userID int64, weekStart, weekEnd model.Date, oooDays, totalPoints int) (*model.WorkWeek, error) {
	now := nowFunc()
	var w model.WorkWeek
	err := s.db.GetContext(ctx, &w, s.db.Rebind(
		`INSERT INTO work_weeks (user_id, week_start, week_end, total_points, ooo_days, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, week_start) DO NOTHING
		 RETURNING `+weekCols),
		userID, weekStart, weekEnd, totalPoints, oooDays, now, now,
	)
	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert week: %w", err)
	}
	return &w, nil
}

// UpdateCapacity sets ooo_days and total_points together. The update only
// applies while the week's assigned points fit in totalPoints; otherwise it
// returns ErrCapacityConflict and leaves the row untouched. A missing week
// returns (nil, nil).
func (s *WeekStore) UpdateCapacity(ctx context.Context, id int64, oooDays, totalPoints int) (*model.WorkWeek, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, tx.Rebind(
		`UPDATE work_weeks SET ooo_days = ?, total_points = ?, updated_at = ?
		 WHERE id = ?
		   AND (SELECT COALESCE(SUM(assigned_points), 0) FROM work_items WHERE week_id = ?) <= ?`),
		oooDays, totalPoints, nowFunc(), id, id, totalPoints,
	)
	if err != nil {
		return nil, fmt.Errorf("update capacity: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM work_weeks WHERE id = ?`), id); err != nil {
			return nil, fmt.Errorf("check week: %w", err)
		}
		if exists == 0 {
			return nil, nil
		}
		return nil, ErrCapacityConflict
	}

	var w model.WorkWeek
	if err := tx.GetContext(ctx, &w, tx.Rebind(`SELECT `+weekCols+` FROM work_weeks WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("reload week: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit capacity: %w", err)
	}
	return &w, nil
}

// ListByUser returns the user's most recent weeks, newest first.
func (s *WeekStore) ListByUser(ctx context.Context, userID int64, limit int) ([]model.WorkWeek, error) {
	var weeks []model.WorkWeek
	err := s.db.SelectContext(ctx, &weeks, s.db.Rebind(
		`SELECT `+weekCols+` FROM work_weeks WHERE user_id = ? ORDER BY week_start DESC LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	return weeks, nil
}

// ListSince returns the user's weeks starting on or after from, oldest first.
func (s *WeekStore) ListSince(ctx context.Context, userID int64, from model.Date) ([]model.WorkWeek, error) {
	var weeks []model.WorkWeek
	err := s.db.SelectContext(ctx, &weeks, s.db.Rebind(
		`SELECT `+weekCols+` FROM work_weeks WHERE user_id = ? AND week_start >= ? ORDER BY week_start`),
		userID, from,
	)
	if err != nil {
		return nil, fmt.Errorf("list weeks since: %w", err)
	}
	return weeks, nil
}
