package model

import "time"

type TaskType string

const (
	TaskPlanned   TaskType = "PLANNED"
	TaskUnplanned TaskType = "UNPLANNED"
	TaskAdhoc     TaskType = "ADHOC"
)

// AllTaskTypes returns task types in display order.
func AllTaskTypes() []TaskType {
	return []TaskType{TaskPlanned, TaskUnplanned, TaskAdhoc}
}

func (t TaskType) Valid() bool {
	switch t {
	case TaskPlanned, TaskUnplanned, TaskAdhoc:
		return true
	}
	return false
}

func (t TaskType) Label() string {
	switch t {
	case TaskPlanned:
		return "Planned"
	case TaskUnplanned:
		return "Unplanned"
	case TaskAdhoc:
		return "Ad-hoc"
	}
	return string(t)
}

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusHold       TaskStatus = "HOLD"
	StatusDelayed    TaskStatus = "DELAYED"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusAbandoned  TaskStatus = "ABANDONED"
)

func AllTaskStatuses() []TaskStatus {
	return []TaskStatus{StatusTodo, StatusInProgress, StatusHold, StatusDelayed, StatusCompleted, StatusAbandoned}
}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusHold, StatusDelayed, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

func (s TaskStatus) Label() string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusHold:
		return "On Hold"
	case StatusDelayed:
		return "Delayed"
	case StatusCompleted:
		return "Completed"
	case StatusAbandoned:
		return "Abandoned"
	}
	return string(s)
}

// CarriesOver reports whether an item in this status follows the user into later weeks.
func (s TaskStatus) CarriesOver() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDelayed
}

type WorkItem struct {
	ID               int64      `db:"id" json:"id"`
	WeekID           int64      `db:"week_id" json:"week_id"`
	Type             TaskType   `db:"type" json:"type"`
	Title            string     `db:"title" json:"title"`
	StartDate        Date       `db:"start_date" json:"start_date"`
	EndDate          Date       `db:"end_date" json:"end_date"`
	AssignedPoints   int        `db:"assigned_points" json:"assigned_points"`
	CompletionPoints *int       `db:"completion_points" json:"completion_points"`
	PlannedWork      string     `db:"planned_work" json:"planned_work"`
	ActualWork       string     `db:"actual_work" json:"actual_work"`
	NextWeekPlan     string     `db:"next_week_plan" json:"next_week_plan"`
	DocumentURL      string     `db:"document_url" json:"document_url"`
	Status           TaskStatus `db:"status" json:"status"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// CompletionOrZero returns the recorded completion points, or 0.
func (i WorkItem) CompletionOrZero() int {
	if i.CompletionPoints == nil {
		return 0
	}
	return *i.CompletionPoints
}

// ItemWithWeek is a work item joined with its parent week's range, as used by
// reports, exports and carry-over lists.
type ItemWithWeek struct {
	WorkItem
	WeekStart Date `db:"week_start" json:"week_start"`
	WeekEnd   Date `db:"week_end" json:"week_end"`
}

// WorkItemInput carries the user-editable fields of a work item.
type WorkItemInput struct {
	Type             TaskType
	Title            string
	StartDate        Date
	EndDate          Date
	AssignedPoints   int
	CompletionPoints *int
	PlannedWork      string
	ActualWork       string
	NextWeekPlan     string
	DocumentURL      string
	Status           TaskStatus
}
