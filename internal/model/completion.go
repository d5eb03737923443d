package model

import "time"

// ChoreCompletion records one fulfilled occurrence of a chore entry.
// At most one row exists per (entry, occurrence instant) pair.
type ChoreCompletion struct {
	ID           int64     `json:"id"`
	EntryID      int64     `json:"entry_id"`
	OccurrenceAt time.Time `json:"occurrence_at"`
	CompletedBy  int64     `json:"completed_by"`
	CompletedAt  time.Time `json:"completed_at"`
}
