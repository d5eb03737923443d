package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/database"
	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/store"
)

func setupAuthTest(t *testing.T) (*store.SessionStore, *store.UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewSessionStore(db), store.NewUserStore(db)
}

func okHandler(t *testing.T, sawUser **model.User) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*sawUser = auth.CurrentUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthNoCookie(t *testing.T) {
	sessions, users := setupAuthTest(t)
	var saw *model.User
	h := RequireAuth(sessions, users)(okHandler(t, &saw))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/occurrences", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if saw != nil {
		t.Error("handler must not run without a session")
	}
}

func TestRequireAuthValidSession(t *testing.T) {
	sessions, users := setupAuthTest(t)
	u, _ := users.Create("alice", "", "", []string{"view"})
	sess, _ := sessions.Create(u.ID, 5*time.Minute)

	var saw *model.User
	h := RequireAuth(sessions, users)(okHandler(t, &saw))

	req := httptest.NewRequest(http.MethodGet, "/api/occurrences", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if saw == nil || saw.ID != u.ID {
		t.Errorf("handler saw user %+v, want id %d", saw, u.ID)
	}
}

func TestRequireAuthDisabledUser(t *testing.T) {
	sessions, users := setupAuthTest(t)
	u, _ := users.Create("alice", "", "", []string{"view"})
	sess, _ := sessions.Create(u.ID, 5*time.Minute)
	users.SetDisabled(u.ID, true)

	var saw *model.User
	h := RequireAuth(sessions, users)(okHandler(t, &saw))

	req := httptest.NewRequest(http.MethodGet, "/api/occurrences", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for disabled account", rec.Code)
	}
}

func TestRequireAuthExpiredSession(t *testing.T) {
	sessions, users := setupAuthTest(t)
	u, _ := users.Create("alice", "", "", []string{"view"})
	sess, _ := sessions.Create(u.ID, -time.Minute)

	var saw *model.User
	h := RequireAuth(sessions, users)(okHandler(t, &saw))

	req := httptest.NewRequest(http.MethodGet, "/api/occurrences", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for expired session", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name  string
		perms []string
		want  int
	}{
		{"has permission", []string{"iam"}, http.StatusOK},
		{"admin passes", []string{"admin"}, http.StatusOK},
		{"lacks permission", []string{"view", "complete"}, http.StatusForbidden},
		{"no permissions", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := RequirePermission(permission.IAM)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			ctx := auth.WithAuth(req.Context(), auth.AuthContext{
				User: &model.User{ID: 1, Username: "x", Permissions: tt.perms},
			})
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req.WithContext(ctx))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequirePermissionUnauthenticated(t *testing.T) {
	h := RequirePermission(permission.IAM)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}
