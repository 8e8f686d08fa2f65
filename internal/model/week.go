package model

import "time"

type WorkWeek struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	WeekStart   Date      `db:"week_start" json:"week_start"`
	WeekEnd     Date      `db:"week_end" json:"week_end"`
	TotalPoints int       `db:"total_points" json:"total_points"`
	OOODays     int       `db:"ooo_days" json:"ooo_days"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Label renders the week as "Dec 16 - Dec 20, 2024".
func (w WorkWeek) Label() string {
	return w.WeekStart.Format("Jan 2") + " - " + w.WeekEnd.Format("Jan 2, 2006")
}
