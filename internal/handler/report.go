package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dukerupert/worktracker/internal/allocation"
	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/capacity"
	"github.com/dukerupert/worktracker/internal/export"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
)

// ReportHandler serves the filtered report page and its downloads.
type ReportHandler struct {
	responder
	reports   *store.ReportStore
	weeks     *store.WeekStore
	items     *store.ItemStore
	analytics *analytics.Service
	now       func() time.Time
}

func NewReportHandler(reports *store.ReportStore, weeks *store.WeekStore, items *store.ItemStore, svc *analytics.Service, tmpl *template.Template, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		responder: responder{templates: tmpl, logger: logger},
		reports:   reports,
		weeks:     weeks,
		items:     items,
		analytics: svc,
		now:       time.Now,
	}
}

// reportQuery is the filter form as submitted, kept as strings for re-display.
type reportQuery struct {
	StartDate string
	EndDate   string
	Type      model.TaskType
	Status    model.TaskStatus
}

func (q reportQuery) encode() string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("start_date", q.StartDate)
	set("end_date", q.EndDate)
	set("task_type", string(q.Type))
	set("status", string(q.Status))
	return v.Encode()
}

// parseReportFilter reads start_date, end_date, task_type and status. Empty
// values mean no filter; unknown types or statuses are rejected.
func parseReportFilter(r *http.Request) (reportQuery, store.ReportFilter, error) {
	q := reportQuery{
		StartDate: r.URL.Query().Get("start_date"),
		EndDate:   r.URL.Query().Get("end_date"),
		Type:      model.TaskType(r.URL.Query().Get("task_type")),
		Status:    model.TaskStatus(r.URL.Query().Get("status")),
	}
	var f store.ReportFilter
	var err error
	if q.StartDate != "" {
		if f.StartDate, err = model.ParseDate(q.StartDate); err != nil {
			return q, f, fmt.Errorf("%w: start_date must be YYYY-MM-DD", capacity.ErrInvalidArgument)
		}
	}
	if q.EndDate != "" {
		if f.EndDate, err = model.ParseDate(q.EndDate); err != nil {
			return q, f, fmt.Errorf("%w: end_date must be YYYY-MM-DD", capacity.ErrInvalidArgument)
		}
	}
	if q.Type != "" && !q.Type.Valid() {
		return q, f, fmt.Errorf("%w: unknown task type %q", capacity.ErrInvalidArgument, q.Type)
	}
	if q.Status != "" && !q.Status.Valid() {
		return q, f, fmt.Errorf("%w: unknown status %q", capacity.ErrInvalidArgument, q.Status)
	}
	f.Type = q.Type
	f.Status = q.Status
	return q, f, nil
}

func (h *ReportHandler) search(w http.ResponseWriter, r *http.Request) (reportQuery, []model.ItemWithWeek, bool) {
	q, f, err := parseReportFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return q, nil, false
	}
	items, err := h.reports.Search(r.Context(), auth.UserID(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return q, nil, false
	}
	return q, items, true
}

func (h *ReportHandler) Reports(w http.ResponseWriter, r *http.Request) {
	q, items, ok := h.search(w, r)
	if !ok {
		return
	}
	assigned, completion := 0, 0
	for _, it := range items {
		assigned += it.AssignedPoints
		completion += it.CompletionOrZero()
	}

	data := page(r, "Reports", h.loadSidebar(r, h.analytics, h.now()))
	data["Items"] = items
	data["Filter"] = q
	data["Query"] = template.URL(q.encode())
	data["TotalAssigned"] = assigned
	data["TotalCompletion"] = completion
	h.render(w, r, http.StatusOK, "reports.html", data)
}

func attachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *ReportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	_, items, ok := h.search(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.CSV(&buf, items); err != nil {
		h.fail(w, r, err)
		return
	}
	attachment(w, export.ContentTypeCSV, export.ExportFilename("csv", h.now()), buf.Bytes())
}

func (h *ReportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	_, items, ok := h.search(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.Excel(&buf, items, h.now()); err != nil {
		h.fail(w, r, err)
		return
	}
	attachment(w, export.ContentTypeExcel, export.ExportFilename("xlsx", h.now()), buf.Bytes())
}

// ExportPDF renders the weekly report for week_start, defaulting to the current week.
func (h *ReportHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day := h.now()
	if v := r.URL.Query().Get("week_start"); v != "" {
		d, err := model.ParseDate(v)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: week_start must be YYYY-MM-DD", capacity.ErrInvalidArgument))
			return
		}
		day = d.Time
	}
	monday, _ := allocation.WeekBounds(day)

	week, err := h.weeks.GetByUserAndStart(ctx, auth.UserID(ctx), monday)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if week == nil {
		h.fail(w, r, allocation.ErrNotFound)
		return
	}
	items, err := h.items.ListByWeek(ctx, week.ID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.PDF(&buf, week, items, h.now()); err != nil {
		h.fail(w, r, err)
		return
	}
	attachment(w, export.ContentTypePDF, export.WeekFilename(week.WeekStart), buf.Bytes())
}
