// Package schedule turns calendar entries and their completion records
// into status-annotated occurrences, and gates every operation through
// the permission evaluator.
package schedule

import (
	"time"

	"github.com/rturner/choreboard/internal/model"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusSkipped   Status = "skipped"
)

// Occurrence is one concrete instance of an entry within a queried
// window. Computed fresh on every query, never persisted.
type Occurrence struct {
	EntryID    int64           `json:"entry_id"`
	Kind       model.EntryKind `json:"kind"`
	Title      string          `json:"title"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Status     Status          `json:"status"`
	Passed     bool            `json:"passed"` // events and reminders only: the instant has gone by
	AssignedTo *int64          `json:"assigned_to,omitempty"`

	CompletedBy *int64     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
