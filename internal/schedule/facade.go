package schedule

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rturner/choreboard/internal/model"
	"github.com/rturner/choreboard/internal/permission"
	"github.com/rturner/choreboard/internal/recurrence"
	"github.com/rturner/choreboard/internal/timeutil"
)

// EntryStore is the slice of entry persistence the facade mutates
// through. Reads for occurrence queries are supplied by the caller.
type EntryStore interface {
	GetByID(id int64) (*model.CalendarEntry, error)
	Create(e *model.CalendarEntry) (*model.CalendarEntry, error)
	Update(id int64, e *model.CalendarEntry) (*model.CalendarEntry, error)
	Delete(id int64) error
}

// CompletionStore persists completion records. Create must be atomic
// and unique-constrained on (entry, occurrence instant) so concurrent
// completes race safely to a single row.
type CompletionStore interface {
	Create(entryID int64, occurrenceAt time.Time, completedBy int64) (*model.ChoreCompletion, error)
	DeleteByOccurrence(entryID int64, occurrenceAt time.Time) error
}

// Service is the scheduling facade: every externally triggered read or
// mutation of calendar entries goes through it and its permission
// checks.
type Service struct {
	entries     EntryStore
	completions CompletionStore
	eval        *permission.Evaluator
	clock       timeutil.Clock
	norm        *timeutil.Normalizer
	logger      *slog.Logger
}

func NewService(entries EntryStore, completions CompletionStore, eval *permission.Evaluator, clock timeutil.Clock, norm *timeutil.Normalizer, logger *slog.Logger) *Service {
	return &Service{
		entries:     entries,
		completions: completions,
		eval:        eval,
		clock:       clock,
		norm:        norm,
		logger:      logger,
	}
}

// validateWindow rejects unusable query windows before any expansion
// work happens.
func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return model.NewValidationError("window start and end are required")
	}
	if end.Before(start) {
		return model.NewValidationError("window end %s precedes start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

// entryLocation resolves the timezone an entry's wall-clock anchor is
// interpreted in, falling back to the process timezone.
func (s *Service) entryLocation(entry *model.CalendarEntry) *time.Location {
	if entry.Timezone == "" {
		return s.norm.Location()
	}
	loc, err := time.LoadLocation(entry.Timezone)
	if err != nil {
		s.logger.Error("invalid entry timezone", "entry_id", entry.ID, "timezone", entry.Timezone, "error", err)
		return s.norm.Location()
	}
	return loc
}

// instantsFor expands an entry's occurrence instants within the window.
// One-shot entries contribute their anchor; entries with an unparseable
// stored rule degrade to one-shot rather than disappearing.
func (s *Service) instantsFor(entry *model.CalendarEntry, windowStart, windowEnd time.Time) []time.Time {
	oneShot := func() []time.Time {
		if !entry.StartTime.Before(windowStart) && entry.StartTime.Before(windowEnd) {
			return []time.Time{entry.StartTime}
		}
		return nil
	}

	if entry.RecurrenceRule == "" {
		return oneShot()
	}

	rule, err := recurrence.Parse(entry.RecurrenceRule)
	if err != nil {
		s.logger.Error("invalid recurrence rule", "entry_id", entry.ID, "rule", entry.RecurrenceRule, "error", err)
		return oneShot()
	}
	return recurrence.Expand(rule, entry.StartTime, s.entryLocation(entry), windowStart, windowEnd)
}

// OccurrencesFor returns the status-annotated occurrences of the given
// entries within [windowStart, windowEnd), sorted by instant then entry
// id. Entries the user may not view are omitted entirely rather than
// reported as denied.
func (s *Service) OccurrencesFor(user *model.User, entries []model.CalendarEntry, completionsByEntry map[int64][]model.ChoreCompletion, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if err := validateWindow(windowStart, windowEnd); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var out []Occurrence
	for i := range entries {
		entry := &entries[i]
		if !s.eval.Allows(user, permission.ActionView, entry) {
			continue
		}
		instants := s.instantsFor(entry, windowStart, windowEnd)
		if len(instants) == 0 {
			continue
		}
		out = append(out, Reconcile(*entry, instants, completionsByEntry[entry.ID], now, s.norm)...)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].EntryID < out[j].EntryID
	})
	return out, nil
}

// CompleteOccurrence records that the user finished the chore
// occurrence at the given instant. Completing an already-completed
// occurrence succeeds without creating a second record.
func (s *Service) CompleteOccurrence(user *model.User, entryID int64, instant time.Time) (*model.ChoreCompletion, error) {
	entry, err := s.entries.GetByID(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, model.ErrNotFound
	}

	if !s.eval.Allows(user, permission.ActionComplete, entry) {
		return nil, model.NewPermissionError(user.Username, string(permission.ActionComplete))
	}
	if entry.Kind != model.KindChore {
		return nil, model.NewValidationError("entry %d is a %s; only chores can be completed", entryID, entry.Kind)
	}
	if !s.coversInstant(entry, instant) {
		return nil, model.NewValidationError("entry %d has no occurrence at %s", entryID, instant.Format(time.RFC3339))
	}

	completion, err := s.completions.Create(entryID, instant, user.ID)
	if err != nil {
		return nil, err
	}
	if completion == nil {
		return nil, fmt.Errorf("complete entry %d: record lost to a concurrent revert", entryID)
	}
	return completion, nil
}

// UncompleteOccurrence removes a completion record, returning the
// occurrence to pending. Missing records are not an error.
func (s *Service) UncompleteOccurrence(user *model.User, entryID int64, instant time.Time) error {
	entry, err := s.entries.GetByID(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return model.ErrNotFound
	}

	if !s.eval.Allows(user, permission.ActionComplete, entry) {
		return model.NewPermissionError(user.Username, string(permission.ActionComplete))
	}
	return s.completions.DeleteByOccurrence(entryID, instant)
}

// coversInstant checks that instant is something the entry's schedule
// actually produces, so fabricated instants never become completions.
func (s *Service) coversInstant(entry *model.CalendarEntry, instant time.Time) bool {
	if entry.RecurrenceRule == "" {
		return entry.StartTime.Equal(instant)
	}
	rule, err := recurrence.Parse(entry.RecurrenceRule)
	if err != nil {
		return entry.StartTime.Equal(instant)
	}
	return recurrence.Covers(rule, entry.StartTime, s.entryLocation(entry), instant)
}

// CreateEntry validates and persists a new calendar entry for a user
// holding the create permission.
func (s *Service) CreateEntry(user *model.User, e model.CalendarEntry) (*model.CalendarEntry, error) {
	if !s.eval.Allows(user, permission.ActionCreate, nil) {
		return nil, model.NewPermissionError(user.Username, string(permission.ActionCreate))
	}
	if err := s.validateEntry(&e); err != nil {
		return nil, err
	}
	e.CreatedBy = user.ID
	return s.entries.Create(&e)
}

// UpdateEntry validates and persists changes to an existing entry. The
// permission check is entry-scoped so the owner exception can apply.
func (s *Service) UpdateEntry(user *model.User, id int64, e model.CalendarEntry) (*model.CalendarEntry, error) {
	existing, err := s.entries.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.ErrNotFound
	}

	if !s.eval.Allows(user, permission.ActionEdit, existing) {
		return nil, model.NewPermissionError(user.Username, string(permission.ActionEdit))
	}
	if err := s.validateEntry(&e); err != nil {
		return nil, err
	}
	return s.entries.Update(id, &e)
}

// DeleteEntry removes an entry. Its completions go with it (storage
// cascade).
func (s *Service) DeleteEntry(user *model.User, id int64) error {
	existing, err := s.entries.GetByID(id)
	if err != nil {
		return err
	}
	if existing == nil {
		return model.ErrNotFound
	}

	if !s.eval.Allows(user, permission.ActionDelete, existing) {
		return model.NewPermissionError(user.Username, string(permission.ActionDelete))
	}
	return s.entries.Delete(id)
}

func (s *Service) validateEntry(e *model.CalendarEntry) error {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return model.NewValidationError("title is required")
	}
	if !e.Kind.Valid() {
		return model.NewValidationError("unknown entry kind %q", e.Kind)
	}
	if e.StartTime.IsZero() {
		return model.NewValidationError("start time is required")
	}
	if e.DurationSeconds <= 0 {
		return model.NewValidationError("duration must be positive")
	}
	if e.Timezone != "" {
		if _, err := time.LoadLocation(e.Timezone); err != nil {
			return model.NewValidationError("unknown timezone %q", e.Timezone)
		}
	}
	if e.RecurrenceRule != "" {
		rule, err := recurrence.Parse(e.RecurrenceRule)
		if err != nil {
			return model.NewValidationError("invalid recurrence rule: %v", err)
		}
		anchor := entryLocalAnchor(e, s.norm)
		if !rule.AnchorMatches(anchor) {
			return model.NewValidationError("start time does not match the rule's selectors; the anchor must be the first occurrence")
		}
	}
	return nil
}

func entryLocalAnchor(e *model.CalendarEntry, norm *timeutil.Normalizer) time.Time {
	if e.Timezone != "" {
		if loc, err := time.LoadLocation(e.Timezone); err == nil {
			return e.StartTime.In(loc)
		}
	}
	return norm.Local(e.StartTime)
}
