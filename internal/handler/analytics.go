package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
)

type AnalyticsHandler struct {
	responder
	analytics *analytics.Service
	now       func() time.Time
}

func NewAnalyticsHandler(svc *analytics.Service, tmpl *template.Template, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		responder: responder{templates: tmpl, logger: logger},
		analytics: svc,
		now:       time.Now,
	}
}

// weeksParam reads ?weeks=N. Missing or malformed values fall back to the default.
func weeksParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("weeks"))
	if err != nil {
		return analytics.DefaultWeeks
	}
	return analytics.ClampWeeks(n)
}

func (h *AnalyticsHandler) Page(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context(), auth.UserID(r.Context()), weeksParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := page(r, "Analytics", h.loadSidebar(r, h.analytics, h.now()))
	data["Summary"] = summary
	h.render(w, r, http.StatusOK, "analytics.html", data)
}

func (h *AnalyticsHandler) Data(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Summary(r.Context(), auth.UserID(r.Context()), weeksParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
