package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/middleware"
	"github.com/dukerupert/worktracker/internal/store"
)

type AuthHandler struct {
	responder
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	isAdminEmail func(string) bool
	secureCookie bool
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	isAdminEmail func(string) bool,
	secureCookie bool,
	tmpl *template.Template,
	logger *slog.Logger,
) *AuthHandler {
	if isAdminEmail == nil {
		isAdminEmail = func(string) bool { return false }
	}
	return &AuthHandler{
		responder:    responder{templates: tmpl, logger: logger},
		userStore:    us,
		sessionStore: ss,
		isAdminEmail: isAdminEmail,
		secureCookie: secureCookie,
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", map[string]any{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := normalizeEmail(r.FormValue("email"))
	password := r.FormValue("password")

	fail := func() {
		h.render(w, r, http.StatusUnauthorized, "login.html", map[string]any{
			"Email": emailAddr,
			"Error": "Invalid email or password",
		})
	}
	if emailAddr == "" || password == "" {
		fail()
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), emailAddr)
	if err != nil {
		h.log(r).Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		h.log(r).Info("login failed", "email", emailAddr, "remote", middleware.RealIP(r))
		fail()
		return
	}

	if err := h.startSession(w, r, user.ID); err != nil {
		h.log(r).Error("create session", "user_id", user.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", map[string]any{})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	emailAddr := normalizeEmail(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	reject := func(status int, msg string) {
		h.render(w, r, status, "signup.html", map[string]any{"Email": emailAddr, "Error": msg})
	}

	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		reject(http.StatusBadRequest, "A valid email is required")
		return
	}
	if err := auth.ValidateNewPassword(password, confirm); err != nil {
		reject(http.StatusBadRequest, capitalize(err.Error()))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.log(r).Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user, err := h.userStore.Create(r.Context(), emailAddr, hash, h.isAdminEmail(emailAddr))
	if errors.Is(err, store.ErrDuplicate) {
		reject(http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		h.log(r).Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.log(r).Info("user signed up", "user_id", user.ID, "admin", user.IsAdmin)

	if err := h.startSession(w, r, user.ID); err != nil {
		h.log(r).Error("create session", "user_id", user.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := auth.SessionID(r.Context()); id != 0 {
		if err := h.sessionStore.Delete(r.Context(), id); err != nil {
			h.log(r).Warn("delete session", "session_id", id, "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess, err := h.sessionStore.Create(r.Context(), userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(h.sessionStore.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
