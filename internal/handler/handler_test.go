package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/worktracker/internal/allocation"
	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/backup"
	"github.com/dukerupert/worktracker/internal/cache"
	"github.com/dukerupert/worktracker/internal/database"
	"github.com/dukerupert/worktracker/internal/model"
	"github.com/dukerupert/worktracker/internal/store"
	ws "github.com/dukerupert/worktracker/internal/websocket"
	"github.com/dukerupert/worktracker/web"
	"github.com/jmoiron/sqlx"
)

// Wednesday; its week runs 2024-12-16 to 2024-12-20.
var testNow = time.Date(2024, 12, 18, 10, 0, 0, 0, time.UTC)

type env struct {
	db       *sqlx.DB
	users    *store.UserStore
	sessions *store.SessionStore
	weeks    *store.WeekStore
	items    *store.ItemStore
	guard    *allocation.Guard
	authH    *AuthHandler
	weekH    *WeekHandler
	reportH  *ReportHandler
	profileH *ProfileHandler
	adminH   *AdminHandler
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := testLogger()
	tmpl := web.ParseTemplates()
	e := &env{
		db:       db,
		users:    store.NewUserStore(db),
		sessions: store.NewSessionStore(db, time.Hour),
		weeks:    store.NewWeekStore(db),
		items:    store.NewItemStore(db),
	}
	reports := store.NewReportStore(db)
	backups := store.NewBackupStore(db)
	e.guard = allocation.NewGuard(e.weeks, e.items, logger)
	svc := analytics.NewService(e.weeks, e.items, reports)
	hub := ws.NewHub(logger)
	mgr := backup.NewManager(backup.Config{}, db, backups, nil, logger)

	isAdmin := func(email string) bool { return email == "boss@example.com" }
	e.authH = NewAuthHandler(e.users, e.sessions, isAdmin, false, tmpl, logger)
	e.weekH = NewWeekHandler(e.guard, e.weeks, e.items, svc, hub, cache.NewMemory(100, time.Hour), time.Minute, tmpl, logger)
	e.weekH.now = func() time.Time { return testNow }
	e.reportH = NewReportHandler(reports, e.weeks, e.items, svc, tmpl, logger)
	e.reportH.now = func() time.Time { return testNow }
	e.profileH = NewProfileHandler(e.users, svc, tmpl, logger)
	e.profileH.now = func() time.Time { return testNow }
	e.adminH = NewAdminHandler(e.users, backups, mgr, svc, tmpl, logger)
	e.adminH.now = func() time.Time { return testNow }
	return e
}

func (e *env) user(t *testing.T, email, password string, admin bool) *model.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := e.users.Create(context.Background(), email, hash, admin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *env) week(t *testing.T, userID int64) *model.WorkWeek {
	t.Helper()
	w, err := e.guard.EnsureWeek(context.Background(), userID, testNow)
	if err != nil {
		t.Fatalf("ensure week: %v", err)
	}
	return w
}

func (e *env) addItem(t *testing.T, userID, weekID int64, points int) *model.WorkItem {
	t.Helper()
	it, _, err := e.guard.CreateItem(context.Background(), userID, weekID, model.WorkItemInput{
		Type: model.TaskPlanned, Title: "seed", AssignedPoints: points,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

// formRequest builds a POST with a urlencoded body, signed in as u.
func formRequest(target string, form url.Values, u *model.User) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withUser(req, u)
}

func withUser(req *http.Request, u *model.User) *http.Request {
	if u == nil {
		return req
	}
	ac := auth.AuthContext{UserID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin}
	return req.WithContext(auth.WithAuth(req.Context(), ac))
}

func asJSON(req *http.Request) *http.Request {
	req.Header.Set("Accept", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", allocation.ErrNotFound, http.StatusNotFound},
		{"fatal", allocation.ErrFatalInconsistency, http.StatusInternalServerError},
		{"other", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := errorStatus(tt.err); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTemplatesRender(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", "secret", true)
	w := e.week(t, u.ID)
	e.addItem(t, u.ID, w.ID, 30)

	pages := []struct {
		name string
		h    http.HandlerFunc
		path string
	}{
		{"dashboard", e.weekH.Dashboard, "/"},
		{"reports", e.reportH.Reports, "/reports"},
		{"profile", e.profileH.Page, "/profile"},
		{"admin", e.adminH.Page, "/admin"},
	}
	for _, p := range pages {
		t.Run(p.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			p.h(rec, withUser(httptest.NewRequest("GET", p.path, nil), u))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "a@example.com") {
				t.Error("page does not show the signed-in user")
			}
		})
	}
}
