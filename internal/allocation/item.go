package allocation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
)

// CreateItem adds a work item to one of the user's weeks if its points fit.
func (g *Guard) CreateItem(ctx context.Context, userID, weekID int64, in model.WorkItemInput) (*model.WorkItem, *model.WorkWeek, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, nil, err
	}
	week, err := g.Week(ctx, userID, weekID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := g.Validate(ctx, week, in.AssignedPoints, 0); err != nil {
		return nil, week, err
	}

	item, err := g.items.Create(ctx, week.ID, in)
	if errors.Is(err, store.ErrCapacityConflict) {
		// Another write to the week landed after Validate.
		return nil, week, g.exceeded(ctx, week, in.AssignedPoints, 0)
	}
	if err != nil {
		return nil, week, fmt.Errorf("create item: %w", err)
	}
	if item == nil {
		return nil, nil, ErrNotFound
	}
	g.logger.Info("work item created", "user_id", userID, "item_id", item.ID, "week_id", week.ID, "points", item.AssignedPoints)
	return item, week, nil
}

// UpdateItem replaces an item's fields. The item's current points are set
// aside when checking the new allocation.
func (g *Guard) UpdateItem(ctx context.Context, userID, itemID int64, in model.WorkItemInput) (*model.WorkItem, *model.WorkWeek, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, nil, err
	}
	existing, week, err := g.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := g.Validate(ctx, week, in.AssignedPoints, existing.ID); err != nil {
		return nil, week, err
	}

	item, err := g.items.Update(ctx, existing.ID, in)
	if errors.Is(err, store.ErrCapacityConflict) {
		return nil, week, g.exceeded(ctx, week, in.AssignedPoints, existing.ID)
	}
	if err != nil {
		return nil, week, fmt.Errorf("update item: %w", err)
	}
	if item == nil {
		return nil, week, ErrNotFound
	}
	return item, week, nil
}

// DeleteItem removes an item and returns the week it belonged to.
func (g *Guard) DeleteItem(ctx context.Context, userID, itemID int64) (*model.WorkWeek, error) {
	existing, week, err := g.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := g.items.Delete(ctx, existing.ID); err != nil {
		return week, fmt.Errorf("delete item: %w", err)
	}
	return week, nil
}

func (g *Guard) ownedItem(ctx context.Context, userID, itemID int64) (*model.WorkItem, *model.WorkWeek, error) {
	item, err := g.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, nil, ErrNotFound
	}
	week, err := g.Week(ctx, userID, item.WeekID)
	if err != nil {
		return nil, nil, err
	}
	return item, week, nil
}

func normalizeInput(in model.WorkItemInput) (model.WorkItemInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, invalid("title is required")
	}
	if !in.Type.Valid() {
		return in, invalid(fmt.Sprintf("unknown task type %q", in.Type))
	}
	if in.Status == "" {
		in.Status = model.StatusTodo
	}
	if !in.Status.Valid() {
		return in, invalid(fmt.Sprintf("unknown status %q", in.Status))
	}
	if in.AssignedPoints < 0 {
		return in, invalid("assigned points must not be negative")
	}
	if in.CompletionPoints != nil && *in.CompletionPoints < 0 {
		return in, invalid("completion points must not be negative")
	}
	if !in.StartDate.IsZero() && !in.EndDate.IsZero() && in.EndDate.Before(in.StartDate) {
		return in, invalid("end date is before start date")
	}
	return in, nil
}

// exceeded rebuilds the capacity error after the store refused a write that
// Validate had let through.
func (g *Guard) exceeded(ctx context.Context, week *model.WorkWeek, proposed int, excludingItemID int64) error {
	remaining, err := g.Validate(ctx, week, proposed, excludingItemID)
	if err != nil {
		return err
	}
	return &capacity.CapacityExceededError{Remaining: remaining}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", capacity.ErrInvalidArgument, msg)
}
