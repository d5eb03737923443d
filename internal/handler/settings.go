package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rturner/choreboard/internal/backup"
	"github.com/rturner/choreboard/internal/store"
)

type SettingsHandler struct {
	settings  *store.SettingsStore
	backupMgr *backup.Manager
	logger    *slog.Logger
}

func NewSettingsHandler(set *store.SettingsStore, bm *backup.Manager, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: set, backupMgr: bm, logger: logger}
}

type settingsResponse struct {
	LogoutDurationMinutes int `json:"logout_duration_minutes"`
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.settings.LogoutDuration()
	if err != nil {
		h.logger.Error("read settings", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		LogoutDurationMinutes: int(d / time.Minute),
	})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.settings.SetLogoutDuration(req.LogoutDurationMinutes); err != nil {
		errorJSON(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Get(w, r)
}

// BackupNow triggers an immediate backup and reports the result.
func (h *SettingsHandler) BackupNow(w http.ResponseWriter, r *http.Request) {
	if err := h.backupMgr.Run(r.Context()); err != nil {
		h.logger.Error("manual backup", "error", err)
		errorJSON(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.backupMgr.Status())
}

func (h *SettingsHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.backupMgr.Status())
}
