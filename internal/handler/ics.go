package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	ical "github.com/arran4/golang-ical"

	"github.com/rturner/choreboard/internal/auth"
	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/schedule"
	"github.com/rturner/choreboard/internal/store"
	"github.com/rturner/choreboard/internal/timeutil"
)

const icsWindowDays = 90

// ICSHandler serves the caller's visible occurrences as an iCalendar feed
// for subscription from phone calendar apps.
type ICSHandler struct {
	svc         *schedule.Service
	entries     *store.EntryStore
	completions *store.CompletionStore
	clock       timeutil.Clock
	norm        *timeutil.Normalizer
	logger      *slog.Logger
}

func NewICSHandler(svc *schedule.Service, es *store.EntryStore, cs *store.CompletionStore, clock timeutil.Clock, norm *timeutil.Normalizer, logger *slog.Logger) *ICSHandler {
	return &ICSHandler{svc: svc, entries: es, completions: cs, clock: clock, norm: norm, logger: logger}
}

func (h *ICSHandler) Feed(w http.ResponseWriter, r *http.Request) {
	start, _ := h.norm.DayBounds(h.clock.Now())
	end := start.AddDate(0, 0, icsWindowDays)

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

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//choreboard//EN")
	now := h.clock.Now().UTC()

	for _, occ := range occurrences {
		if occ.Status == schedule.StatusSkipped {
			continue
		}
		uid := fmt.Sprintf("entry-%d-%d@choreboard", occ.EntryID, occ.Start.Unix())
		ev := cal.AddEvent(uid)
		ev.SetDtStampTime(now)
		ev.SetStartAt(occ.Start)
		ev.SetEndAt(occ.End)
		summary := occ.Title
		if occ.Status == schedule.StatusCompleted {
			summary = "✓ " + summary
		}
		ev.SetSummary(summary)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="choreboard.ics"`)
	if err := cal.SerializeTo(w); err != nil {
		h.logger.Error("serialize calendar", "error", err)
	}
}
