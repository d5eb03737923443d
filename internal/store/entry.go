package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rturner/choreboard/internal/model"
)

type EntryStore struct {
	db *sql.DB
}

func NewEntryStore(db *sql.DB) *EntryStore {
	return &EntryStore{db: db}
}

func scanEntry(scanner interface{ Scan(...any) error }) (*model.CalendarEntry, error) {
	var e model.CalendarEntry
	var assignedTo sql.NullInt64
	var skipped string
	err := scanner.Scan(
		&e.ID, &e.Kind, &e.Title, &e.Description, &e.StartTime, &e.DurationSeconds,
		&e.RecurrenceRule, &e.Timezone, &skipped, &e.CreatedBy, &assignedTo,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if assignedTo.Valid {
		e.AssignedTo = &assignedTo.Int64
	}
	if err := json.Unmarshal([]byte(skipped), &e.Skipped); err != nil {
		return nil, fmt.Errorf("decode skipped: %w", err)
	}
	return &e, nil
}

const entryCols = `id, kind, title, description, start_time, duration_seconds,
	recurrence_rule, timezone, skipped, created_by, assigned_to, created_at, updated_at`

func (s *EntryStore) Create(e *model.CalendarEntry) (*model.CalendarEntry, error) {
	skipped, err := encodeSkipped(e.Skipped)
	if err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO calendar_entries
			(kind, title, description, start_time, duration_seconds, recurrence_rule, timezone, skipped, created_by, assigned_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Kind, e.Title, e.Description, e.StartTime.UTC(), e.DurationSeconds,
		e.RecurrenceRule, e.Timezone, skipped, e.CreatedBy, nullableID(e.AssignedTo),
	)
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EntryStore) GetByID(id int64) (*model.CalendarEntry, error) {
	row := s.db.QueryRow(`SELECT `+entryCols+` FROM calendar_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *EntryStore) List() ([]*model.CalendarEntry, error) {
	rows, err := s.db.Query(`SELECT ` + entryCols + ` FROM calendar_entries ORDER BY start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListRelevant returns entries that could produce occurrences at or before end:
// everything recurring plus one-shot entries starting before end. Expansion
// against the real window happens in the schedule package.
func (s *EntryStore) ListRelevant(end time.Time) ([]*model.CalendarEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+entryCols+` FROM calendar_entries
		WHERE recurrence_rule != '' OR start_time < ?
		ORDER BY start_time, id`,
		end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list relevant entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*model.CalendarEntry, error) {
	var entries []*model.CalendarEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *EntryStore) Update(id int64, e *model.CalendarEntry) (*model.CalendarEntry, error) {
	skipped, err := encodeSkipped(e.Skipped)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(
		`UPDATE calendar_entries SET
			kind = ?, title = ?, description = ?, start_time = ?, duration_seconds = ?,
			recurrence_rule = ?, timezone = ?, skipped = ?, assigned_to = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		e.Kind, e.Title, e.Description, e.StartTime.UTC(), e.DurationSeconds,
		e.RecurrenceRule, e.Timezone, skipped, nullableID(e.AssignedTo), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the entry and its completion history in one transaction, so a
// failure partway through never leaves orphaned completions behind.
func (s *EntryStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete entry: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chore_completions WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("delete completions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM calendar_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return tx.Commit()
}

func encodeSkipped(skipped []time.Time) (string, error) {
	if skipped == nil {
		skipped = []time.Time{}
	}
	b, err := json.Marshal(skipped)
	if err != nil {
		return "", fmt.Errorf("encode skipped: %w", err)
	}
	return string(b), nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
