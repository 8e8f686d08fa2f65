package handler

import (
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/worktracker/internal/allocation"
	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/logging"
	"github.com/dukerupert/worktracker/internal/middleware"
)

// responder holds what every page handler needs to write a response.
type responder struct {
	templates *template.Template
	logger    *slog.Logger
}

func (h *responder) log(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), h.logger)
}

func (h *responder) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.log(r).Error("template error", "template", name, "error", err)
	}
}

// page builds the data map shared by every page using the layout.
func page(r *http.Request, title string, sidebar *analytics.Sidebar) map[string]any {
	ac, _ := auth.FromContext(r.Context())
	return map[string]any{
		"Title":   title,
		"User":    ac,
		"Sidebar": sidebar,
		"Error":   r.URL.Query().Get("error"),
		"Flash":   r.URL.Query().Get("flash"),
	}
}

// loadSidebar fetches the current-week panel. Pages still render without it.
func (h *responder) loadSidebar(r *http.Request, svc *analytics.Service, now time.Time) *analytics.Sidebar {
	sb, err := svc.Sidebar(r.Context(), auth.UserID(r.Context()), now)
	if err != nil {
		h.log(r).Warn("load sidebar", "error", err)
		return nil
	}
	return sb
}

func (h *responder) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if middleware.WantsJSON(r) {
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}
	h.render(w, r, status, "error.html", map[string]any{"Status": status, "Message": msg})
}

// fail maps a domain error to a status and writes it. Unexpected errors are
// logged and reported as 500.
func (h *responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log(r).Error("request failed", "path", r.URL.Path, "error", err)
	}
	h.renderError(w, r, status, msg)
}

func errorStatus(err error) (int, string) {
	var exceeded *capacity.CapacityExceededError
	switch {
	case errors.As(err, &exceeded):
		return http.StatusUnprocessableEntity, exceeded.Error()
	case errors.Is(err, capacity.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, allocation.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
