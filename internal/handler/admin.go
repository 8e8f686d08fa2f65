package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/backup"
	"github.com/dukerupert/worktracker/internal/middleware"
	"github.com/dukerupert/worktracker/internal/store"
)

const backupListLimit = 50

type AdminHandler struct {
	responder
	users     *store.UserStore
	backups   *store.BackupStore
	manager   *backup.Manager
	analytics *analytics.Service
	now       func() time.Time
}

func NewAdminHandler(users *store.UserStore, backups *store.BackupStore, manager *backup.Manager, svc *analytics.Service, tmpl *template.Template, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		responder: responder{templates: tmpl, logger: logger},
		users:     users,
		backups:   backups,
		manager:   manager,
		analytics: svc,
		now:       time.Now,
	}
}

func adminRedirect(w http.ResponseWriter, r *http.Request, key, msg string) {
	http.Redirect(w, r, "/admin?"+url.Values{key: {msg}}.Encode(), http.StatusSeeOther)
}

func (h *AdminHandler) Page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.users.StatsAll(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	backups, err := h.backups.List(ctx, backupListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := page(r, "Admin", h.loadSidebar(r, h.analytics, h.now()))
	data["Users"] = users
	data["Backups"] = backups
	data["BackupEnabled"] = h.manager.Enabled()
	data["BackupStatus"] = h.manager.Status()
	h.render(w, r, http.StatusOK, "admin.html", data)
}

// DeleteUser removes a user and, through cascading keys, their weeks, items
// and sessions. Admins cannot delete themselves.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid user id")
		return
	}
	if id == auth.UserID(ctx) {
		if middleware.WantsJSON(r) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cannot delete your own account"})
			return
		}
		adminRedirect(w, r, "error", "Cannot delete your own account")
		return
	}

	user, err := h.users.GetByID(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		h.renderError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if err := h.users.Delete(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log(r).Info("user deleted", "user_id", id, "by", auth.UserID(ctx))

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"deleted_id": id})
		return
	}
	adminRedirect(w, r, "flash", fmt.Sprintf("Deleted %s", user.Email))
}

// RunBackup takes a backup synchronously. The backup is not cancelled if the
// client disconnects.
func (h *AdminHandler) RunBackup(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.RunNow(context.WithoutCancel(r.Context()))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, backup.ErrNotConfigured):
			status = http.StatusBadRequest
		case errors.Is(err, backup.ErrInProgress):
			status = http.StatusConflict
		default:
			h.log(r).Error("backup failed", "error", err)
		}
		if middleware.WantsJSON(r) {
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		adminRedirect(w, r, "error", "Backup failed: "+err.Error())
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, rec)
		return
	}
	adminRedirect(w, r, "flash", "Backup "+rec.Filename+" uploaded")
}

func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List(r.Context(), backupListLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.manager.Enabled(),
		"status":  h.manager.Status(),
		"backups": backups,
	})
}

// DownloadBackup streams the encrypted backup file as stored.
func (h *AdminHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid backup id")
		return
	}
	body, rec, err := h.manager.Download(r.Context(), id)
	switch {
	case errors.Is(err, backup.ErrNotFound):
		h.renderError(w, r, http.StatusNotFound, "backup not found")
		return
	case errors.Is(err, backup.ErrNotConfigured):
		h.renderError(w, r, http.StatusBadRequest, "backups are not configured")
		return
	case err != nil:
		h.log(r).Error("download backup", "backup_id", id, "error", err)
		h.renderError(w, r, http.StatusBadGateway, "backup download failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rec.Filename))
	if _, err := io.Copy(w, body); err != nil {
		h.log(r).Warn("stream backup", "backup_id", id, "error", err)
	}
}
