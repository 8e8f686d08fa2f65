// Package capacity converts out-of-office days into a weekly points budget.
package capacity

import (
	"errors"
	"fmt"

	"github.com/dukerupert/worktracker/internal/model"
)

const (
	WorkingDays  = 5
	PointsPerDay = 20
	MaxPoints    = WorkingDays * PointsPerDay
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// CapacityExceededError reports how many points were still available when an
// allocation or capacity change was rejected. Remaining is negative when
// current usage is already above the requested capacity.
type CapacityExceededError struct {
	Remaining int
}

func (e *CapacityExceededError) Error() string {
	if e.Remaining < 0 {
		return fmt.Sprintf("assigned points exceed the new capacity by %d", -e.Remaining)
	}
	return fmt.Sprintf("only %d points remaining for this week", e.Remaining)
}

func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// Capacity returns the points budget for a week with the given OOO day count.
func Capacity(oooDays int) (int, error) {
	if oooDays < 0 || oooDays > WorkingDays {
		return 0, fmt.Errorf("%w: ooo days must be between 0 and %d, got %d", ErrInvalidArgument, WorkingDays, oooDays)
	}
	return (WorkingDays - oooDays) * PointsPerDay, nil
}

// UsedPoints sums the assigned points of items.
func UsedPoints(items []model.WorkItem) int {
	total := 0
	for _, it := range items {
		total += it.AssignedPoints
	}
	return total
}

// Remaining returns Capacity(oooDays) - used. It is not clamped.
func Remaining(oooDays, used int) (int, error) {
	c, err := Capacity(oooDays)
	if err != nil {
		return 0, err
	}
	return c - used, nil
}

// Percent returns used as a whole-number share of total, 0 when total is 0.
func Percent(used, total int) int {
	if total <= 0 {
		return 0
	}
	return used * 100 / total
}
