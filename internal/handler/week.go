package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/worktracker/internal/allocation"
	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/cache"
	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/middleware"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
	ws "github.com/dukerupert/worktracker/internal/websocket"
	"github.com/google/uuid"
)

const recentWeeks = 52

// WeekHandler serves the dashboard, the week editor and the item/OOO mutations.
type WeekHandler struct {
	responder
	guard     *allocation.Guard
	weeks     *store.WeekStore
	items     *store.ItemStore
	analytics *analytics.Service
	hub       *ws.Hub
	idem      *idempotency
	now       func() time.Time
}

func NewWeekHandler(
	guard *allocation.Guard,
	weeks *store.WeekStore,
	items *store.ItemStore,
	svc *analytics.Service,
	hub *ws.Hub,
	c cache.Cache,
	idemTTL time.Duration,
	tmpl *template.Template,
	logger *slog.Logger,
) *WeekHandler {
	return &WeekHandler{
		responder: responder{templates: tmpl, logger: logger},
		guard:     guard,
		weeks:     weeks,
		items:     items,
		analytics: svc,
		hub:       hub,
		idem:      newIdempotency(c, idemTTL, logger),
		now:       time.Now,
	}
}

func weekPath(w *model.WorkWeek) string {
	return "/input/" + w.WeekStart.String()
}

func (h *WeekHandler) sidebar(r *http.Request) *analytics.Sidebar {
	return h.loadSidebar(r, h.analytics, h.now())
}

func (h *WeekHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.renderError(w, r, http.StatusNotFound, "page not found")
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)

	week, err := h.guard.EnsureWeek(ctx, userID, h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items, err := h.items.ListByWeek(ctx, week.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	carry, err := h.items.PendingBefore(ctx, userID, week.WeekStart)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	used := capacity.UsedPoints(items)
	data := page(r, "Dashboard", h.sidebar(r))
	data["Week"] = week
	data["Items"] = items
	data["ByType"] = analytics.PointsByType(items)
	data["CarryOver"] = carry
	data["Used"] = used
	data["Remaining"] = week.TotalPoints - used
	h.render(w, r, http.StatusOK, "dashboard.html", data)
}

// InputRedirect sends /input to the editor for the current week.
func (h *WeekHandler) InputRedirect(w http.ResponseWriter, r *http.Request) {
	monday, _ := allocation.WeekBounds(h.now())
	http.Redirect(w, r, "/input/"+monday.String(), http.StatusFound)
}

// Input shows the week editor, creating the week on first visit. Any date is
// accepted and redirected to its Monday.
func (h *WeekHandler) Input(w http.ResponseWriter, r *http.Request) {
	day, err := model.ParseDate(r.PathValue("week_start"))
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid week start date")
		return
	}
	week, err := h.guard.EnsureWeek(r.Context(), auth.UserID(r.Context()), day.Time)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !week.WeekStart.Equal(day) {
		http.Redirect(w, r, weekPath(week), http.StatusFound)
		return
	}
	h.renderInput(w, r, http.StatusOK, week, "")
}

func (h *WeekHandler) renderInput(w http.ResponseWriter, r *http.Request, status int, week *model.WorkWeek, errMsg string) {
	ctx := r.Context()
	items, err := h.items.ListByWeek(ctx, week.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recent, err := h.weeks.ListByUser(ctx, week.UserID, recentWeeks)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	used := capacity.UsedPoints(items)
	data := page(r, week.Label(), h.sidebar(r))
	if errMsg != "" {
		data["Error"] = errMsg
	}
	data["Week"] = week
	data["Items"] = items
	data["ByType"] = analytics.PointsByType(items)
	data["Used"] = used
	data["Remaining"] = week.TotalPoints - used
	data["PrevWeek"] = week.WeekStart.AddDays(-7).String()
	data["NextWeek"] = week.WeekStart.AddDays(7).String()
	data["RecentWeeks"] = recent
	data["IdemKey"] = uuid.NewString()
	data["NewItem"] = model.WorkItem{Type: model.TaskPlanned, Status: model.StatusTodo}
	h.render(w, r, status, "input.html", data)
}

// mutationFailed answers a rejected item or OOO change. Browsers get the
// editor back with the message; JSON clients get the mapped status.
func (h *WeekHandler) mutationFailed(w http.ResponseWriter, r *http.Request, week *model.WorkWeek, err error) {
	status, msg := errorStatus(err)
	if week == nil || middleware.WantsJSON(r) || status == http.StatusInternalServerError || status == http.StatusNotFound {
		h.fail(w, r, err)
		return
	}
	h.renderInput(w, r, status, week, msg)
}

// duplicate answers a resubmitted form without applying it again.
func (h *WeekHandler) duplicate(w http.ResponseWriter, r *http.Request) {
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate submission"})
		return
	}
	target := "/input"
	if d, err := model.ParseDate(r.FormValue("week_start")); err == nil {
		target = "/input/" + d.String()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// remaining is best effort; a failure only affects the pushed event.
func (h *WeekHandler) remaining(ctx context.Context, week *model.WorkWeek) int {
	rem, err := h.guard.Validate(ctx, week, 0, 0)
	var exceeded *capacity.CapacityExceededError
	if errors.As(err, &exceeded) {
		return exceeded.Remaining
	}
	return rem
}

func (h *WeekHandler) SetOOO(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	weekID, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid week id")
		return
	}
	week, err := h.guard.Week(ctx, userID, weekID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ooo, err := strconv.Atoi(strings.TrimSpace(r.FormValue("ooo_days")))
	if err != nil {
		h.mutationFailed(w, r, week, fmt.Errorf("%w: ooo_days must be a number", capacity.ErrInvalidArgument))
		return
	}

	ok, release := h.idem.claim(r, userID)
	if !ok {
		h.duplicate(w, r)
		return
	}
	updated, err := h.guard.SetOOOForUser(ctx, userID, weekID, ooo)
	if err != nil {
		release()
		h.mutationFailed(w, r, week, err)
		return
	}

	h.log(r).Info("ooo updated", "week_id", updated.ID, "ooo_days", updated.OOODays)
	h.hub.BroadcastToUser(userID, ws.WeekMessage(updated.ID, updated.OOODays, updated.TotalPoints))
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"week":      updated,
			"remaining": h.remaining(ctx, updated),
		})
		return
	}
	http.Redirect(w, r, weekPath(updated), http.StatusSeeOther)
}

func (h *WeekHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	weekID, err := strconv.ParseInt(r.FormValue("week_id"), 10, 64)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid week id")
		return
	}
	week, err := h.guard.Week(ctx, userID, weekID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in, err := parseItemForm(r)
	if err != nil {
		h.mutationFailed(w, r, week, err)
		return
	}

	ok, release := h.idem.claim(r, userID)
	if !ok {
		h.duplicate(w, r)
		return
	}
	item, updated, err := h.guard.CreateItem(ctx, userID, weekID, in)
	if err != nil {
		release()
		h.mutationFailed(w, r, week, err)
		return
	}
	h.itemChanged(w, r, "created", item, updated, http.StatusCreated)
}

func (h *WeekHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	itemID, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid item id")
		return
	}
	in, err := parseItemForm(r)
	if err != nil {
		h.mutationFailed(w, r, h.formWeek(r, userID), err)
		return
	}

	ok, release := h.idem.claim(r, userID)
	if !ok {
		h.duplicate(w, r)
		return
	}
	item, week, err := h.guard.UpdateItem(ctx, userID, itemID, in)
	if err != nil {
		release()
		if week == nil {
			week = h.formWeek(r, userID)
		}
		h.mutationFailed(w, r, week, err)
		return
	}
	h.itemChanged(w, r, "updated", item, week, http.StatusOK)
}

func (h *WeekHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)
	itemID, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid item id")
		return
	}

	ok, release := h.idem.claim(r, userID)
	if !ok {
		h.duplicate(w, r)
		return
	}
	week, err := h.guard.DeleteItem(ctx, userID, itemID)
	if err != nil {
		release()
		h.fail(w, r, err)
		return
	}
	h.itemChanged(w, r, "deleted", &model.WorkItem{ID: itemID, WeekID: week.ID}, week, http.StatusOK)
}

func (h *WeekHandler) itemChanged(w http.ResponseWriter, r *http.Request, action string, item *model.WorkItem, week *model.WorkWeek, status int) {
	ctx := r.Context()
	rem := h.remaining(ctx, week)
	h.log(r).Info("item "+action, "item_id", item.ID, "week_id", week.ID, "remaining", rem)
	h.hub.BroadcastToUser(auth.UserID(ctx), ws.ItemMessage(action, item.ID, week.ID, rem))

	if middleware.WantsJSON(r) {
		body := map[string]any{"week": week, "remaining": rem}
		if action != "deleted" {
			body["item"] = item
		} else {
			body["deleted_id"] = item.ID
		}
		writeJSON(w, status, body)
		return
	}
	http.Redirect(w, r, weekPath(week), http.StatusSeeOther)
}

// formWeek finds the week named by the form's week_start so a rejected update
// can re-render its editor. It returns nil when that isn't possible.
func (h *WeekHandler) formWeek(r *http.Request, userID int64) *model.WorkWeek {
	d, err := model.ParseDate(r.FormValue("week_start"))
	if err != nil {
		return nil
	}
	week, err := h.weeks.GetByUserAndStart(r.Context(), userID, d.Monday())
	if err != nil {
		return nil
	}
	return week
}

// Stats returns the sidebar numbers for the current week.
func (h *WeekHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sb, err := h.analytics.Sidebar(r.Context(), auth.UserID(r.Context()), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sb)
}

func parseItemForm(r *http.Request) (model.WorkItemInput, error) {
	in := model.WorkItemInput{
		Type:         model.TaskType(strings.TrimSpace(r.FormValue("type"))),
		Status:       model.TaskStatus(strings.TrimSpace(r.FormValue("status"))),
		Title:        r.FormValue("title"),
		PlannedWork:  r.FormValue("planned_work"),
		ActualWork:   r.FormValue("actual_work"),
		NextWeekPlan: r.FormValue("next_week_plan"),
		DocumentURL:  strings.TrimSpace(r.FormValue("document_url")),
	}

	var err error
	if in.AssignedPoints, err = formInt(r, "assigned_points"); err != nil {
		return in, err
	}
	if v := strings.TrimSpace(r.FormValue("completion_points")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return in, fmt.Errorf("%w: completion_points must be a number", capacity.ErrInvalidArgument)
		}
		in.CompletionPoints = &n
	}
	if in.StartDate, err = formDate(r, "start_date"); err != nil {
		return in, err
	}
	if in.EndDate, err = formDate(r, "end_date"); err != nil {
		return in, err
	}
	return in, nil
}

func formInt(r *http.Request, field string) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", capacity.ErrInvalidArgument, field)
	}
	return n, nil
}

func formDate(r *http.Request, field string) (model.Date, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return model.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", capacity.ErrInvalidArgument, field)
	}
	return d, nil
}
