// Package analytics summarises a user's weeks for the dashboard sidebar and
// the analytics page.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
)

const (
	DefaultWeeks = 12
	MaxWeeks     = 52
)

type Service struct {
	weeks   *store.WeekStore
	items   *store.ItemStore
	reports *store.ReportStore
	now     func() time.Time
}

func NewService(weeks *store.WeekStore, items *store.ItemStore, reports *store.ReportStore) *Service {
	return &Service{weeks: weeks, items: items, reports: reports, now: time.Now}
}

type TrendPoint struct {
	Week      string `json:"week"`
	WeekStart string `json:"week_start"`
	Capacity  int    `json:"capacity"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
	Completed int    `json:"completed"`
}

type TypeSlice struct {
	Type   model.TaskType `json:"type"`
	Label  string         `json:"label"`
	Count  int            `json:"count"`
	Points int            `json:"points"`
}

type StatusSlice struct {
	Status model.TaskStatus `json:"status"`
	Label  string           `json:"label"`
	Count  int              `json:"count"`
}

type CarryOverItem struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	Type     model.TaskType   `json:"type"`
	Status   model.TaskStatus `json:"status"`
	Points   int              `json:"points"`
	Week     string           `json:"week"`
	WeeksOld int              `json:"weeks_old"`
}

type Summary struct {
	Weeks            int             `json:"weeks"`
	PointsTrend      []TrendPoint    `json:"points_trend"`
	TypeDistribution []TypeSlice     `json:"type_distribution"`
	StatusBreakdown  []StatusSlice   `json:"status_breakdown"`
	CarryOver        []CarryOverItem `json:"carry_over"`
}

// ClampWeeks bounds a requested look-back to [1, MaxWeeks]; 0 means the default.
func ClampWeeks(n int) int {
	switch {
	case n == 0:
		return DefaultWeeks
	case n < 1:
		return 1
	case n > MaxWeeks:
		return MaxWeeks
	}
	return n
}

// Summary covers the last n weeks up to today. Carry-over lists in-progress
// and delayed items from weeks that ended before the current Monday.
func (s *Service) Summary(ctx context.Context, userID int64, n int) (*Summary, error) {
	n = ClampWeeks(n)
	monday := model.NewDate(s.now()).Monday()
	from := model.NewDate(s.now()).AddDays(-7 * n)

	sum := &Summary{Weeks: n}

	rows, err := s.reports.PointsByWeek(ctx, userID, from)
	if err != nil {
		return nil, err
	}
	sum.PointsTrend = make([]TrendPoint, 0, len(rows))
	for _, r := range rows {
		sum.PointsTrend = append(sum.PointsTrend, TrendPoint{
			Week:      r.WeekStart.Format("01/02"),
			WeekStart: r.WeekStart.String(),
			Capacity:  r.TotalPoints,
			Used:      r.AssignedPoints,
			Remaining: r.TotalPoints - r.AssignedPoints,
			Completed: r.CompletedPoints,
		})
	}

	types, err := s.reports.TypeDistribution(ctx, userID, from)
	if err != nil {
		return nil, err
	}
	byType := make(map[model.TaskType]store.TypeTotal, len(types))
	for _, t := range types {
		byType[t.Type] = t
	}
	for _, tt := range model.AllTaskTypes() {
		sum.TypeDistribution = append(sum.TypeDistribution, TypeSlice{
			Type:   tt,
			Label:  tt.Label(),
			Count:  byType[tt].Count,
			Points: byType[tt].Points,
		})
	}

	statuses, err := s.reports.StatusBreakdown(ctx, userID, from)
	if err != nil {
		return nil, err
	}
	byStatus := make(map[model.TaskStatus]int, len(statuses))
	for _, st := range statuses {
		byStatus[st.Status] = st.Count
	}
	for _, st := range model.AllTaskStatuses() {
		sum.StatusBreakdown = append(sum.StatusBreakdown, StatusSlice{Status: st, Label: st.Label(), Count: byStatus[st]})
	}

	pending, err := s.items.PendingBefore(ctx, userID, monday)
	if err != nil {
		return nil, err
	}
	sum.CarryOver = []CarryOverItem{}
	for _, it := range pending {
		if it.Status == model.StatusTodo {
			continue
		}
		sum.CarryOver = append(sum.CarryOver, CarryOverItem{
			ID:       it.ID,
			Title:    it.Title,
			Type:     it.Type,
			Status:   it.Status,
			Points:   it.AssignedPoints,
			Week:     it.WeekStart.String(),
			WeeksOld: WeeksBetween(it.WeekStart, monday),
		})
	}
	return sum, nil
}

// WeeksBetween counts whole weeks from start to monday.
func WeeksBetween(start, monday model.Date) int {
	days := int(monday.Sub(start.Time).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / 7
}

// Sidebar is the current-week snapshot shown on every page.
type Sidebar struct {
	WeekStart   string         `json:"week_start"`
	WeekEnd     string         `json:"week_end"`
	TotalPoints int            `json:"total_points"`
	OOODays     int            `json:"ooo_days"`
	Used        int            `json:"total_used"`
	Remaining   int            `json:"remaining"`
	Percent     int            `json:"percentage"`
	ByType      map[string]int `json:"by_type"`
}

// PointsByType sums assigned points per task type, with every type present.
func PointsByType(items []model.WorkItem) map[string]int {
	out := make(map[string]int, len(model.AllTaskTypes()))
	for _, t := range model.AllTaskTypes() {
		out[string(t)] = 0
	}
	for _, it := range items {
		out[string(it.Type)] += it.AssignedPoints
	}
	return out
}

// Sidebar reports the week containing today without creating it. A week that
// doesn't exist yet shows full capacity.
func (s *Service) Sidebar(ctx context.Context, userID int64, today time.Time) (*Sidebar, error) {
	monday := model.NewDate(today).Monday()
	friday := monday.AddDays(capacity.WorkingDays - 1)

	sb := &Sidebar{
		WeekStart:   monday.String(),
		WeekEnd:     friday.String(),
		TotalPoints: capacity.MaxPoints,
		Remaining:   capacity.MaxPoints,
		ByType:      PointsByType(nil),
	}

	week, err := s.weeks.GetByUserAndStart(ctx, userID, monday)
	if err != nil {
		return nil, err
	}
	if week == nil {
		return sb, nil
	}

	items, err := s.items.ListByWeek(ctx, week.ID)
	if err != nil {
		return nil, err
	}
	used := capacity.UsedPoints(items)
	remaining, err := capacity.Remaining(week.OOODays, used)
	if err != nil {
		return nil, fmt.Errorf("week %d: %w", week.ID, err)
	}

	sb.TotalPoints = week.TotalPoints
	sb.OOODays = week.OOODays
	sb.Used = used
	sb.Remaining = remaining
	sb.Percent = capacity.Percent(used, week.TotalPoints)
	sb.ByType = PointsByType(items)
	return sb, nil
}
