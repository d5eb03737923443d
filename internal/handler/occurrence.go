package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/schedule"
	"github.com/rturner/choreboard/internal/store"
	"github.com/rturner/choreboard/internal/timeutil"
	"github.com/rturner/choreboard/internal/websocket"
)

type OccurrenceHandler struct {
	svc         *schedule.Service
	entries     *store.EntryStore
	completions *store.CompletionStore
	norm        *timeutil.Normalizer
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewOccurrenceHandler(svc *schedule.Service, es *store.EntryStore, cs *store.CompletionStore, norm *timeutil.Normalizer, hub *websocket.Hub, logger *slog.Logger) *OccurrenceHandler {
	return &OccurrenceHandler{svc: svc, entries: es, completions: cs, norm: norm, hub: hub, logger: logger}
}

func (h *OccurrenceHandler) broadcast(event websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(event)
	}
}

// List returns the reconciled occurrence feed for [start, end). Both bounds
// accept RFC 3339 instants or bare dates in the server timezone.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	startRaw := r.URL.Query().Get("start")
	endRaw := r.URL.Query().Get("end")
	if startRaw == "" || endRaw == "" {
		errorJSON(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}
	start, err := parseTimeParam(startRaw, h.norm.Location())
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD")
		return
	}
	end, err := parseTimeParam(endRaw, h.norm.Location())
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD")
		return
	}

	entries, err := h.entries.ListRelevant(end)
	if err != nil {
		h.logger.Error("list entries", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}
	completions, err := h.completions.ListByDateRange(start, end)
	if err != nil {
		h.logger.Error("list completions", "error", err)
		errorJSON(w, http.StatusInternalServerError, "internal error")
		return
	}

	entryVals := make([]model.CalendarEntry, 0, len(entries))
	for _, e := range entries {
		entryVals = append(entryVals, *e)
	}
	byEntry := make(map[int64][]model.ChoreCompletion)
	for _, c := range completions {
		byEntry[c.EntryID] = append(byEntry[c.EntryID], *c)
	}

	occurrences, err := h.svc.OccurrencesFor(auth.CurrentUser(r.Context()), entryVals, byEntry, start, end)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if occurrences == nil {
		occurrences = []schedule.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occurrences)
}

type completeRequest struct {
	OccurrenceAt time.Time `json:"occurrence_at"`
}

// Complete marks one occurrence of a chore done. Repeating the call is a
// no-op that returns the original record.
func (h *OccurrenceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OccurrenceAt.IsZero() {
		errorJSON(w, http.StatusBadRequest, "occurrence_at is required")
		return
	}

	completion, err := h.svc.CompleteOccurrence(auth.CurrentUser(r.Context()), id, req.OccurrenceAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.CompletionEvent(websocket.ActionCompleted, id, completion.OccurrenceAt))
	writeJSON(w, http.StatusCreated, completion)
}

// Uncomplete reverts a completion, returning the occurrence to pending or
// overdue on the next query.
func (h *OccurrenceHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.OccurrenceAt.IsZero() {
		errorJSON(w, http.StatusBadRequest, "occurrence_at is required")
		return
	}

	if err := h.svc.UncompleteOccurrence(auth.CurrentUser(r.Context()), id, req.OccurrenceAt); err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.broadcast(websocket.CompletionEvent(websocket.ActionReverted, id, req.OccurrenceAt))
	w.WriteHeader(http.StatusNoContent)
}
