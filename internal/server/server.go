// Package server wires stores, services and handlers into the HTTP router.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/worktracker/internal/allocation"
	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/backup"
	"github.com/dukerupert/worktracker/internal/cache"
	"github.com/dukerupert/worktracker/internal/handler"
	"github.com/dukerupert/worktracker/internal/middleware"
	"github.com/dukerupert/worktracker/internal/store"
	ws "github.com/dukerupert/worktracker/internal/websocket"
	"github.com/dukerupert/worktracker/web"
	"github.com/jmoiron/sqlx"
)

const (
	authRateLimit  = 10
	authRateWindow = time.Minute
)

// Options carries the settings the server needs from configuration.
type Options struct {
	Cache          cache.Cache
	IdempotencyTTL time.Duration
	SessionTTL     time.Duration
	SecureCookie   bool
	IsAdminEmail   func(string) bool
	Backup         backup.Config
	// OriginPatterns lists extra hosts allowed to open websockets.
	OriginPatterns []string
}

type Server struct {
	db            *sqlx.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	weekH         *handler.WeekHandler
	reportH       *handler.ReportHandler
	analyticsH    *handler.AnalyticsHandler
	profileH      *handler.ProfileHandler
	adminH        *handler.AdminHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	origins       []string
	logger        *slog.Logger
}

func New(db *sqlx.DB, opts Options, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	tmpl := web.ParseTemplates()

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db, opts.SessionTTL)
	weekStore := store.NewWeekStore(db)
	itemStore := store.NewItemStore(db)
	reportStore := store.NewReportStore(db)
	backupStore := store.NewBackupStore(db)

	guard := allocation.NewGuard(weekStore, itemStore, logger.With("component", "allocation"))
	analyticsSvc := analytics.NewService(weekStore, itemStore, reportStore)

	backupMgr := backup.NewManager(opts.Backup, db, backupStore, func(s backup.Status) {
		hub.BroadcastToAdmins(ws.NewMessage(ws.EntityBackup, string(s.State), 0, map[string]any{
			"in_progress": s.InProgress,
			"error":       s.Error,
		}))
	}, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, opts.IsAdminEmail, opts.SecureCookie, tmpl, logger.With("component", "auth")),
		weekH:         handler.NewWeekHandler(guard, weekStore, itemStore, analyticsSvc, hub, opts.Cache, opts.IdempotencyTTL, tmpl, logger.With("component", "week")),
		reportH:       handler.NewReportHandler(reportStore, weekStore, itemStore, analyticsSvc, tmpl, logger.With("component", "report")),
		analyticsH:    handler.NewAnalyticsHandler(analyticsSvc, tmpl, logger.With("component", "analytics")),
		profileH:      handler.NewProfileHandler(userStore, analyticsSvc, tmpl, logger.With("component", "profile")),
		adminH:        handler.NewAdminHandler(userStore, backupStore, backupMgr, analyticsSvc, tmpl, logger.With("component", "admin")),
		sessionStore:  sessionStore,
		userStore:     userStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		origins:       opts.OriginPatterns,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /signup", s.authH.SignupPage)
	outerMux.HandleFunc("POST /signup", s.rateLimitedHandler(s.authH.Signup))
	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	httpLogger := s.logger.With("component", "http")
	return middleware.RequestID(httpLogger)(middleware.RequestLogger(httpLogger)(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus, code := "ok", "ok", http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check", "error", err)
		status, dbStatus, code = "error", "error", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `","database":"` + dbStatus + `"}` + "\n"))
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.ByIP, authRateLimit, authRateWindow)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /logout", s.authH.Logout)

	// Pages
	mux.HandleFunc("GET /", s.weekH.Dashboard)
	mux.HandleFunc("GET /input", s.weekH.InputRedirect)
	mux.HandleFunc("GET /input/{week_start}", s.weekH.Input)
	mux.HandleFunc("GET /analytics", s.analyticsH.Page)
	mux.HandleFunc("GET /reports", s.reportH.Reports)
	mux.HandleFunc("GET /profile", s.profileH.Page)
	mux.HandleFunc("POST /profile/password", s.profileH.ChangePassword)

	// Week and item mutations
	mux.HandleFunc("POST /api/weeks/{id}/ooo", s.weekH.SetOOO)
	mux.HandleFunc("POST /api/work-items", s.weekH.CreateItem)
	mux.HandleFunc("POST /api/work-items/{id}", s.weekH.UpdateItem)
	mux.HandleFunc("POST /api/work-items/{id}/delete", s.weekH.DeleteItem)

	// JSON
	mux.HandleFunc("GET /api/stats", s.weekH.Stats)
	mux.HandleFunc("GET /api/analytics/data", s.analyticsH.Data)

	// Exports
	mux.HandleFunc("GET /reports/export/csv", s.reportH.ExportCSV)
	mux.HandleFunc("GET /reports/export/excel", s.reportH.ExportExcel)
	mux.HandleFunc("GET /reports/export/pdf", s.reportH.ExportPDF)

	// Admin
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }
	mux.Handle("GET /admin", admin(s.adminH.Page))
	mux.Handle("POST /admin/users/{id}/delete", admin(s.adminH.DeleteUser))
	mux.Handle("POST /admin/backup", admin(s.adminH.RunBackup))
	mux.Handle("GET /admin/backups", admin(s.adminH.ListBackups))
	mux.Handle("GET /admin/backups/{id}/download", admin(s.adminH.DownloadBackup))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins, s.logger.With("component", "websocket")))
}
