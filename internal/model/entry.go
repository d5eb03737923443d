package model

import "time"

type EntryKind string

const (
	KindEvent    EntryKind = "event"
	KindChore    EntryKind = "chore"
	KindReminder EntryKind = "reminder"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindEvent, KindChore, KindReminder:
		return true
	}
	return false
}

// CalendarEntry is an event, chore, or reminder on the shared calendar.
// StartTime anchors the series: when RecurrenceRule is set it is the
// first occurrence, otherwise the entry happens exactly once.
type CalendarEntry struct {
	ID              int64       `json:"id"`
	Kind            EntryKind   `json:"kind"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	StartTime       time.Time   `json:"start_time"`
	DurationSeconds int64       `json:"duration_seconds"`
	RecurrenceRule  string      `json:"recurrence_rule"`
	Timezone        string      `json:"timezone"` // IANA name; empty = process timezone
	Skipped         []time.Time `json:"skipped"`
	CreatedBy       int64       `json:"created_by"`
	AssignedTo      *int64      `json:"assigned_to"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (e CalendarEntry) Duration() time.Duration {
	return time.Duration(e.DurationSeconds) * time.Second
}

// IsSkipped reports whether the occurrence at the given instant was
// marked skipped on this entry.
func (e CalendarEntry) IsSkipped(instant time.Time) bool {
	for _, s := range e.Skipped {
		if s.Equal(instant) {
			return true
		}
	}
	return false
}
