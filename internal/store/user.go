package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/worktracker/internal/model"
	"github.com/jmoiron/sqlx"
)

type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

const userCols = `id, email, password_hash, is_admin, created_at, updated_at`

// Create inserts a user. It returns ErrDuplicate when the email is taken.
func (s *UserStore) Create(ctx context.Context, email, passwordHash string, isAdmin bool) (*model.User, error) {
	now := nowFunc()
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(
		`INSERT INTO users (email, password_hash, is_admin, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING `+userCols),
		email, passwordHash, isAdmin, now, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, s.db.Rebind(`SELECT `+userCols+` FROM users WHERE email = ?`), email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := s.db.SelectContext(ctx, &users, `SELECT `+userCols+` FROM users ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`),
		passwordHash, nowFunc(), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// Delete removes the user. Weeks, items and sessions cascade.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

const userStatsQuery = `
SELECT u.id AS user_id, u.email, u.is_admin, u.created_at,
	(SELECT COUNT(*) FROM work_weeks w WHERE w.user_id = u.id) AS total_weeks,
	(SELECT COUNT(*) FROM work_items i JOIN work_weeks w ON w.id = i.week_id
		WHERE w.user_id = u.id) AS total_items,
	(SELECT COALESCE(SUM(i.assigned_points), 0) FROM work_items i JOIN work_weeks w ON w.id = i.week_id
		WHERE w.user_id = u.id) AS total_points
FROM users u`

// Stats returns activity totals for one user, or nil if the user does not exist.
func (s *UserStore) Stats(ctx context.Context, id int64) (*model.UserStats, error) {
	var st model.UserStats
	err := s.db.GetContext(ctx, &st, s.db.Rebind(userStatsQuery+` WHERE u.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user stats: %w", err)
	}
	return &st, nil
}

// StatsAll returns activity totals for every user, oldest account first.
func (s *UserStore) StatsAll(ctx context.Context) ([]model.UserStats, error) {
	var stats []model.UserStats
	if err := s.db.SelectContext(ctx, &stats, userStatsQuery+` ORDER BY u.created_at, u.id`); err != nil {
		return nil, fmt.Errorf("list user stats: %w", err)
	}
	return stats, nil
}
