package middleware

import (
	"context"
	"net/http"

	"github.com/dukerupert/worktracker/internal/auth"
	"github.com/dukerupert/worktracker/internal/model"
)

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "worktracker_session"

// SessionLookup resolves session tokens. *store.SessionStore satisfies it.
type SessionLookup interface {
	GetByToken(ctx context.Context, token string) (*model.Session, error)
}

// UserLookup resolves user ids. *store.UserStore satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth validates the session cookie and populates AuthContext.
// JSON clients get a 401; browsers are redirected to /login.
func RequireAuth(sessions SessionLookup, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				redirectToLogin(w, r)
				return
			}

			sess, err := sessions.GetByToken(r.Context(), cookie.Value)
			if err != nil || sess == nil {
				redirectToLogin(w, r)
				return
			}

			user, err := users.GetByID(r.Context(), sess.UserID)
			if err != nil || user == nil {
				redirectToLogin(w, r)
				return
			}

			ac := auth.AuthContext{
				UserID:    user.ID,
				Email:     user.Email,
				IsAdmin:   user.IsAdmin,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user is an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WantsJSON reports whether the client asked for a JSON response.
func WantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
