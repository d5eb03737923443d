package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/store"
	"github.com/rturner/choreboard/internal/websocket"
)

// UserHandler manages accounts. Every route through it sits behind the iam
// permission gate.
type UserHandler struct {
	users    *store.UserStore
	sessions *store.SessionStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewUserHandler(us *store.UserStore, ss *store.SessionStore, hub *websocket.Hub, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, sessions: ss, hub: hub, logger: logger}
}

func (h *UserHandler) broadcast(event websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(event)
	}
}

type userRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	PIN         string   `json:"pin"`
	Permissions []string `json:"permissions"`
}

func validPermissions(perms []string) bool {
	for _, p := range perms {
		if !permission.Valid(permission.Permission(p)) {
			return false
		}
	}
	return true
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.logger.Error("list users", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		errorJSON(w, http.StatusBadRequest, "username is required")
		return
	}
	if !validPermissions(req.Permissions) {
		errorJSON(w, http.StatusBadRequest, "unknown permission")
		return
	}

	existing, err := h.users.GetByUsername(req.Username)
	if err != nil {
		h.logger.Error("look up user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		errorJSON(w, http.StatusConflict, "username already taken")
		return
	}

	passwordHash, pinHash, err := hashCredentials(req.Password, req.PIN)
	if err != nil {
		h.logger.Error("hash credentials", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.users.Create(req.Username, passwordHash, pinHash, req.Permissions)
	if err != nil {
		h.logger.Error("create user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.broadcast(websocket.NewEvent(websocket.EntityUser, websocket.ActionCreated, user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func hashCredentials(password, pin string) (string, string, error) {
	var passwordHash, pinHash string
	if password != "" {
		h, err := auth.HashSecret(password)
		if err != nil {
			return "", "", err
		}
		passwordHash = h
	}
	if pin != "" {
		h, err := auth.HashSecret(pin)
		if err != nil {
			return "", "", err
		}
		pinHash = h
	}
	return passwordHash, pinHash, nil
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		req.Username = existing.Username
	}
	if !validPermissions(req.Permissions) {
		errorJSON(w, http.StatusBadRequest, "unknown permission")
		return
	}

	user, err := h.users.Update(id, req.Username, req.Permissions)
	if err != nil {
		h.logger.Error("update user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.Password != "" || req.PIN != "" {
		passwordHash, pinHash, err := hashCredentials(req.Password, req.PIN)
		if err != nil {
			h.logger.Error("hash credentials", "error", err)
			errorJSON(w, http.StatusInternalServerError, "internal error")
			return
		}
		if passwordHash != "" {
			if err := h.users.SetPasswordHash(id, passwordHash); err != nil {
				h.logger.Error("set password", "error", err)
				errorJSON(w, http.StatusInternalServerError, "internal error")
				return
			}
		}
		if pinHash != "" {
			if err := h.users.SetPINHash(id, pinHash); err != nil {
				h.logger.Error("set pin", "error", err)
				errorJSON(w, http.StatusInternalServerError, "internal error")
				return
			}
		}
	}

	h.broadcast(websocket.NewEvent(websocket.EntityUser, websocket.ActionUpdated, id))
	writeJSON(w, http.StatusOK, user)
}

type disableRequest struct {
	Disabled bool `json:"disabled"`
}

// SetDisabled toggles an account. Disabling also revokes the account's
// sessions so access ends immediately, and you cannot lock yourself out.
func (h *UserHandler) SetDisabled(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req disableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	caller := auth.CurrentUser(r.Context())
	if req.Disabled && caller != nil && caller.ID == id {
		errorJSON(w, http.StatusBadRequest, "cannot disable your own account")
		return
	}

	existing, err := h.users.GetByID(id)
	if err != nil {
		h.logger.Error("get user", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		errorJSON(w, http.StatusNotFound, "user not found")
		return
	}

	if err := h.users.SetDisabled(id, req.Disabled); err != nil {
		h.logger.Error("set disabled", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.Disabled {
		if err := h.sessions.DeleteByUser(id); err != nil {
			h.logger.Error("revoke sessions", "error", err)
		}
	}

	h.broadcast(websocket.NewEvent(websocket.EntityUser, websocket.ActionUpdated, id))
	user, _ := h.users.GetByID(id)
	writeJSON(w, http.StatusOK, user)
}
