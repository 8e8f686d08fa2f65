package handler

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/export"
	"github.com/dukerupert/worktracker/internal/store"
	"github.com/dukerupert/worktracker/web"
)

func TestExportCSV(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)
	w := e.week(t, u.ID)
	e.addItem(t, u.ID, w.ID, 30)
	e.addItem(t, u.ID, w.ID, 20)

	rec := httptest.NewRecorder()
	e.reportH.ExportCSV(rec, withUser(httptest.NewRequest("GET", "/reports/export/csv?task_type=PLANNED", nil), u))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentTypeCSV {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="work_tracker_export_20241218.csv"` {
		t.Errorf("content disposition = %q", cd)
	}

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(export.Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}
}

func TestExportCSVEmpty(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)

	rec := httptest.NewRecorder()
	e.reportH.ExportCSV(rec, withUser(httptest.NewRequest("GET", "/reports/export/csv", nil), u))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rows, _ := csv.NewReader(rec.Body).ReadAll()
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}

func TestReportFilterRejected(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)

	for _, q := range []string{"start_date=12/01/2024", "end_date=nope", "task_type=URGENT", "status=LOST"} {
		t.Run(q, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.reportH.ExportCSV(rec, asJSON(withUser(httptest.NewRequest("GET", "/reports/export/csv?"+q, nil), u)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestReportsPageKeepsFilter(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)
	w := e.week(t, u.ID)
	e.addItem(t, u.ID, w.ID, 30)

	rec := httptest.NewRecorder()
	e.reportH.Reports(rec, withUser(httptest.NewRequest("GET", "/reports?status=TODO", nil), u))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "/reports/export/csv?status=TODO") {
		t.Error("export link does not carry the filter")
	}
}

func TestExportExcel(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)
	w := e.week(t, u.ID)
	e.addItem(t, u.ID, w.ID, 30)

	rec := httptest.NewRecorder()
	e.reportH.ExportExcel(rec, withUser(httptest.NewRequest("GET", "/reports/export/excel", nil), u))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != export.ContentTypeExcel {
		t.Errorf("content type = %q", ct)
	}
	// xlsx files are zip archives.
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Error("body is not a zip archive")
	}
}

func TestExportPDF(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)

	rec := httptest.NewRecorder()
	e.reportH.ExportPDF(rec, asJSON(withUser(httptest.NewRequest("GET", "/reports/export/pdf?week_start=2024-12-09", nil), u)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing week status = %d, want 404", rec.Code)
	}

	w := e.week(t, u.ID)
	e.addItem(t, u.ID, w.ID, 30)
	rec = httptest.NewRecorder()
	e.reportH.ExportPDF(rec, withUser(httptest.NewRequest("GET", "/reports/export/pdf?week_start=2024-12-18", nil), u))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Error("body is not a PDF")
	}
}

func TestAnalyticsData(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", false)
	h := NewAnalyticsHandler(analytics.NewService(e.weeks, e.items, store.NewReportStore(e.db)), web.ParseTemplates(), testLogger())

	rec := httptest.NewRecorder()
	h.Data(rec, withUser(httptest.NewRequest("GET", "/api/analytics?weeks=500", nil), u))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var s analytics.Summary
	decode(t, rec, &s)
	if s.Weeks != analytics.MaxWeeks {
		t.Errorf("weeks = %d, want %d", s.Weeks, analytics.MaxWeeks)
	}
}
