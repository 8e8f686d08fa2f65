package model

import "time"

type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserStats is the per-user activity summary shown on the profile and admin pages.
type UserStats struct {
	UserID      int64     `db:"user_id" json:"user_id"`
	Email       string    `db:"email" json:"email"`
	IsAdmin     bool      `db:"is_admin" json:"is_admin"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	TotalWeeks  int       `db:"total_weeks" json:"total_weeks"`
	TotalItems  int       `db:"total_items" json:"total_items"`
	TotalPoints int       `db:"total_points" json:"total_points"`
}
