package middleware

import (
	"net/http"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/store"
)

const SessionCookieName = "choreboard_session"

// RequireAuth validates the session cookie, loads the account, and populates
// AuthContext. Disabled accounts are rejected even while their session is
// still live.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessions.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			user, err := users.GetByID(sess.UserID)
			if err != nil || user == nil || user.Disabled {
				unauthorized(w)
				return
			}

			noteUsername(r.Context(), user.Username)
			ac := auth.AuthContext{User: user, SessionToken: sess.Token}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a route on one permission. Admins pass every gate.
func RequirePermission(p permission.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.CurrentUser(r.Context())
			if user == nil || !permission.Has(user.Permissions, p) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
