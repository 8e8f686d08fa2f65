// Package allocation enforces the weekly points budget on every work-week and
// work-item mutation.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
	"github.com/sethvargo/go-retry"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrFatalInconsistency = errors.New("week missing after insert conflict")
)

const defaultRequeryDelay = 10 * time.Millisecond

// WeekRepository is the storage the guard needs for weeks. Lookups return
// (nil, nil) when nothing matches.
type WeekRepository interface {
	GetByID(ctx context.Context, id int64) (*model.WorkWeek, error)
	GetByUserAndStart(ctx context.Context, userID int64, weekStart model.Date) (*model.WorkWeek, error)
	InsertIfAbsent(ctx context.Context, userID int64, weekStart, weekEnd model.Date, oooDays, totalPoints int) (*model.WorkWeek, error)
	UpdateCapacity(ctx context.Context, id int64, oooDays, totalPoints int) (*model.WorkWeek, error)
}

// ItemRepository is the storage the guard needs for work items.
type ItemRepository interface {
	GetByID(ctx context.Context, id int64) (*model.WorkItem, error)
	Create(ctx context.Context, weekID int64, in model.WorkItemInput) (*model.WorkItem, error)
	Update(ctx context.Context, id int64, in model.WorkItemInput) (*model.WorkItem, error)
	Delete(ctx context.Context, id int64) error
	SumAssigned(ctx context.Context, weekID, excludingID int64) (int, error)
}

type Guard struct {
	weeks        WeekRepository
	items        ItemRepository
	requeryDelay time.Duration
	logger       *slog.Logger
}

func NewGuard(weeks WeekRepository, items ItemRepository, logger *slog.Logger) *Guard {
	return &Guard{
		weeks:        weeks,
		items:        items,
		requeryDelay: defaultRequeryDelay,
		logger:       logger,
	}
}

// WeekBounds returns the Monday and Friday of the week containing day.
func WeekBounds(day time.Time) (model.Date, model.Date) {
	monday := model.NewDate(day).Monday()
	return monday, monday.AddDays(capacity.WorkingDays - 1)
}

// EnsureWeek returns the user's week containing target, creating it with full
// capacity on first access. Concurrent callers always get the same row.
func (g *Guard) EnsureWeek(ctx context.Context, userID int64, target time.Time) (*model.WorkWeek, error) {
	monday, friday := WeekBounds(target)
	if monday.IsZero() {
		// The zero date is stored as NULL.
		return nil, fmt.Errorf("%w: no week starts on %s", capacity.ErrInvalidArgument, monday.Format(model.DateLayout))
	}

	w, err := g.weeks.GetByUserAndStart(ctx, userID, monday)
	if err != nil {
		return nil, fmt.Errorf("lookup week: %w", err)
	}
	if w != nil {
		return w, nil
	}

	w, err = g.weeks.InsertIfAbsent(ctx, userID, monday, friday, 0, capacity.MaxPoints)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("create week: %w", err)
	}

	g.logger.Debug("week insert conflict, re-reading", "user_id", userID, "week_start", monday.String())
	return g.requeryWeek(ctx, userID, monday)
}

var errStillMissing = errors.New("week still missing")

// requeryWeek reads back the row another writer inserted. It tries twice at
// most before reporting ErrFatalInconsistency.
func (g *Guard) requeryWeek(ctx context.Context, userID int64, monday model.Date) (*model.WorkWeek, error) {
	backoff := retry.WithMaxRetries(1, retry.NewConstant(g.requeryDelay))
	w, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*model.WorkWeek, error) {
		w, err := g.weeks.GetByUserAndStart(ctx, userID, monday)
		if err != nil {
			return nil, err
		}
		if w == nil {
			return nil, retry.RetryableError(errStillMissing)
		}
		return w, nil
	})
	if errors.Is(err, errStillMissing) {
		return nil, fmt.Errorf("%w: user %d, week %s", ErrFatalInconsistency, userID, monday)
	}
	if err != nil {
		return nil, fmt.Errorf("re-read week: %w", err)
	}
	return w, nil
}

// Week loads a week owned by userID, or returns ErrNotFound.
func (g *Guard) Week(ctx context.Context, userID, weekID int64) (*model.WorkWeek, error) {
	w, err := g.weeks.GetByID(ctx, weekID)
	if err != nil {
		return nil, fmt.Errorf("get week: %w", err)
	}
	if w == nil || w.UserID != userID {
		return nil, ErrNotFound
	}
	return w, nil
}

// Validate checks that proposed points fit in the week once excludingItemID's
// own allocation is set aside (0 excludes nothing). It returns the points
// available before the proposal is applied.
func (g *Guard) Validate(ctx context.Context, week *model.WorkWeek, proposed int, excludingItemID int64) (int, error) {
	if proposed < 0 {
		return 0, fmt.Errorf("%w: assigned points must not be negative", capacity.ErrInvalidArgument)
	}
	current, err := g.items.SumAssigned(ctx, week.ID, excludingItemID)
	if err != nil {
		return 0, fmt.Errorf("sum assigned points: %w", err)
	}
	remaining, err := capacity.Remaining(week.OOODays, current)
	if err != nil {
		return 0, err
	}
	if proposed > remaining {
		return remaining, &capacity.CapacityExceededError{Remaining: remaining}
	}
	return remaining, nil
}

// SetOOO changes a week's out-of-office days. Shrinking capacity below the
// points already assigned is rejected and leaves the week unchanged.
func (g *Guard) SetOOO(ctx context.Context, weekID int64, oooDays int) (*model.WorkWeek, error) {
	newCap, err := capacity.Capacity(oooDays)
	if err != nil {
		return nil, err
	}

	current, err := g.items.SumAssigned(ctx, weekID, 0)
	if err != nil {
		return nil, fmt.Errorf("sum assigned points: %w", err)
	}
	if current > newCap {
		return nil, &capacity.CapacityExceededError{Remaining: newCap - current}
	}

	w, err := g.weeks.UpdateCapacity(ctx, weekID, oooDays, newCap)
	if errors.Is(err, store.ErrCapacityConflict) {
		// An item landed between the check and the update.
		current, sumErr := g.items.SumAssigned(ctx, weekID, 0)
		if sumErr != nil {
			return nil, fmt.Errorf("sum assigned points: %w", sumErr)
		}
		return nil, &capacity.CapacityExceededError{Remaining: newCap - current}
	}
	if err != nil {
		return nil, fmt.Errorf("update capacity: %w", err)
	}
	if w == nil {
		return nil, ErrNotFound
	}
	return w, nil
}

// SetOOOForUser is SetOOO with an ownership check.
func (g *Guard) SetOOOForUser(ctx context.Context, userID, weekID int64, oooDays int) (*model.WorkWeek, error) {
	if _, err := g.Week(ctx, userID, weekID); err != nil {
		return nil, err
	}
	return g.SetOOO(ctx, weekID, oooDays)
}
