package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/schedule"
	"github.com/rturner/choreboard/internal/store"
	"github.com/rturner/choreboard/internal/websocket"
)

type EntryHandler struct {
	svc     *schedule.Service
	entries *store.EntryStore
	eval    *permission.Evaluator
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewEntryHandler(svc *schedule.Service, es *store.EntryStore, eval *permission.Evaluator, hub *websocket.Hub, logger *slog.Logger) *EntryHandler {
	return &EntryHandler{svc: svc, entries: es, eval: eval, hub: hub, logger: logger}
}

func (h *EntryHandler) broadcast(event websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(event)
	}
}

type entryRequest struct {
	Kind            string      `json:"kind"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	StartTime       time.Time   `json:"start_time"`
	DurationSeconds int64       `json:"duration_seconds"`
	RecurrenceRule  string      `json:"recurrence_rule"`
	Timezone        string      `json:"timezone"`
	Skipped         []time.Time `json:"skipped"`
	AssignedTo      *int64      `json:"assigned_to"`
}

func (req entryRequest) toModel() model.CalendarEntry {
	return model.CalendarEntry{
		Kind:            model.EntryKind(req.Kind),
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       req.StartTime,
		DurationSeconds: req.DurationSeconds,
		RecurrenceRule:  req.RecurrenceRule,
		Timezone:        req.Timezone,
		Skipped:         req.Skipped,
		AssignedTo:      req.AssignedTo,
	}
}

func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	entry, err := h.svc.CreateEntry(auth.CurrentUser(r.Context()), req.toModel())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewEvent(websocket.EntityEntry, websocket.ActionCreated, entry.ID))
	writeJSON(w, http.StatusCreated, entry)
}

// List returns every entry the caller may view; entries outside the
// caller's visibility are omitted rather than erroring.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.entries.List()
	if err != nil {
		h.logger.Error("list entries", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	user := auth.CurrentUser(r.Context())
	visible := make([]*model.CalendarEntry, 0, len(all))
	for _, e := range all {
		if h.eval.Allows(user, permission.ActionView, e) {
			visible = append(visible, e)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	entry, err := h.entries.GetByID(id)
	if err != nil {
		h.logger.Error("get entry", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Unviewable entries 404 rather than 403 so their existence stays
	// hidden.
	if entry == nil || !h.eval.Allows(auth.CurrentUser(r.Context()), permission.ActionView, entry) {
		errorJSON(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	entry, err := h.svc.UpdateEntry(auth.CurrentUser(r.Context()), id, req.toModel())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewEvent(websocket.EntityEntry, websocket.ActionUpdated, id))
	writeJSON(w, http.StatusOK, entry)
}

func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.svc.DeleteEntry(auth.CurrentUser(r.Context()), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.NewEvent(websocket.EntityEntry, websocket.ActionDeleted, id))
	w.WriteHeader(http.StatusNoContent)
}
