package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/worktracker/internal/analytics"
	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/store"
)

type ProfileHandler struct {
	responder
	users     *store.UserStore
	analytics *analytics.Service
	now       func() time.Time
}

func NewProfileHandler(users *store.UserStore, svc *analytics.Service, tmpl *template.Template, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		responder: responder{templates: tmpl, logger: logger},
		users:     users,
		analytics: svc,
		now:       time.Now,
	}
}

func (h *ProfileHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.renderProfile(w, r, http.StatusOK, "", "")
}

func (h *ProfileHandler) renderProfile(w http.ResponseWriter, r *http.Request, status int, errMsg, flash string) {
	stats, err := h.users.Stats(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if stats == nil {
		h.renderError(w, r, http.StatusNotFound, "user not found")
		return
	}
	data := page(r, "Profile", h.loadSidebar(r, h.analytics, h.now()))
	data["Stats"] = stats
	if errMsg != "" {
		data["Error"] = errMsg
	}
	if flash != "" {
		data["Flash"] = flash
	}
	h.render(w, r, status, "profile.html", data)
}

// ChangePassword verifies the current password before storing the new one.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.UserID(ctx)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		h.renderError(w, r, http.StatusNotFound, "user not found")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, r.FormValue("current_password")) {
		h.renderProfile(w, r, http.StatusBadRequest, "Current password is incorrect", "")
		return
	}
	newPassword := r.FormValue("new_password")
	if err := auth.ValidateNewPassword(newPassword, r.FormValue("confirm_password")); err != nil {
		h.renderProfile(w, r, http.StatusBadRequest, capitalize(err.Error()), "")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.users.UpdatePassword(ctx, userID, hash); err != nil {
		h.fail(w, r, err)
		return
	}
	h.log(r).Info("password changed", "user_id", userID)
	h.renderProfile(w, r, http.StatusOK, "", "Password updated")
}
