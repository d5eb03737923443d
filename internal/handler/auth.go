package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/middleware"
	"github.com/rturner/choreboard/internal/store"
)

type AuthHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, set *store.SettingsStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: us, sessions: ss, settings: set, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	PIN      string `json:"pin"`
}

// Login authenticates with either a password or a PIN and issues a session
// cookie. Both credential paths share one uniform failure message so the
// response does not reveal which part was wrong.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || (req.Password == "" && req.PIN == "") {
		errorJSON(w, http.StatusBadRequest, "username and password or pin are required")
		return
	}

	user, err := h.users.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("look up user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.Disabled || !h.credentialsMatch(user.PasswordHash, user.PINHash, req) {
		errorJSON(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ttl, err := h.settings.LogoutDuration()
	if err != nil {
		h.logger.Error("read logout duration", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	sess, err := h.sessions.Create(user.ID, ttl)
	if err != nil {
		h.logger.Error("create session", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("login", "user", user.Username)
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) credentialsMatch(passwordHash, pinHash string, req loginRequest) bool {
	if req.Password != "" {
		return auth.VerifySecret(passwordHash, req.Password)
	}
	return auth.VerifySecret(pinHash, req.PIN)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.SessionToken(r.Context()); token != "" {
		if err := h.sessions.Delete(token); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me returns the authenticated account, letting clients render permissions
// without a second round trip.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.CurrentUser(r.Context()))
}
