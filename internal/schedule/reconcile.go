package schedule

import (
	"time"

	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/timeutil"
)

// Reconcile merges an entry's generated occurrence instants with its
// persisted completions, assigning each occurrence a status.
//
// Chores: completed when a record matches the exact instant, overdue
// once the instant's local day has ended without one, pending
// otherwise. Events and reminders have no completion concept; they stay
// pending and are flagged Passed once their span is over. Instants
// marked skipped on the entry report as skipped regardless of kind.
//
// Pure function of its inputs: the same entry, instants, completions,
// and now always yield the same result.
func Reconcile(entry model.CalendarEntry, instants []time.Time, completions []model.ChoreCompletion, now time.Time, norm *timeutil.Normalizer) []Occurrence {
	byInstant := make(map[int64]*model.ChoreCompletion, len(completions))
	for i := range completions {
		byInstant[completions[i].OccurrenceAt.Unix()] = &completions[i]
	}

	out := make([]Occurrence, 0, len(instants))
	for _, instant := range instants {
		occ := Occurrence{
			EntryID:    entry.ID,
			Kind:       entry.Kind,
			Title:      entry.Title,
			Start:      instant,
			End:        instant.Add(entry.Duration()),
			AssignedTo: entry.AssignedTo,
		}

		switch {
		case entry.IsSkipped(instant):
			occ.Status = StatusSkipped

		case entry.Kind != model.KindChore:
			occ.Status = StatusPending
			occ.Passed = now.After(occ.End)

		default:
			if comp, ok := byInstant[instant.Unix()]; ok {
				occ.Status = StatusCompleted
				occ.CompletedBy = &comp.CompletedBy
				completedAt := comp.CompletedAt
				occ.CompletedAt = &completedAt
			} else if !now.Before(norm.EndOfDay(instant)) {
				occ.Status = StatusOverdue
			} else {
				occ.Status = StatusPending
			}
		}

		out = append(out, occ)
	}
	return out
}
