package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rturner/choreboard/internal/model"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.ChoreCompletion, error) {
	var c model.ChoreCompletion
	err := scanner.Scan(&c.ID, &c.EntryID, &c.OccurrenceAt, &c.CompletedBy, &c.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const completionCols = `id, entry_id, occurrence_at, completed_by, completed_at`

// normalizeOccurrence makes occurrence instants comparable as stored text:
// always UTC, always whole seconds.
func normalizeOccurrence(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Create records a completion for one occurrence. Completing the same
// occurrence twice is a no-op; the first record wins and is returned.
// A revert racing between the insert and the read-back makes the
// read-back miss, so the insert is retried before giving up.
func (s *CompletionStore) Create(entryID int64, occurrenceAt time.Time, completedBy int64) (*model.ChoreCompletion, error) {
	occ := normalizeOccurrence(occurrenceAt)
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.db.Exec(
			`INSERT INTO chore_completions (entry_id, occurrence_at, completed_by)
			VALUES (?, ?, ?)
			ON CONFLICT(entry_id, occurrence_at) DO NOTHING`,
			entryID, occ, completedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("insert completion: %w", err)
		}
		c, err := s.GetByOccurrence(entryID, occ)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, fmt.Errorf("insert completion: entry %d occurrence %s kept vanishing", entryID, occ.Format(time.RFC3339))
}

func (s *CompletionStore) GetByOccurrence(entryID int64, occurrenceAt time.Time) (*model.ChoreCompletion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM chore_completions WHERE entry_id = ? AND occurrence_at = ?`,
		entryID, normalizeOccurrence(occurrenceAt),
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) ListByEntry(entryID int64) ([]*model.ChoreCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM chore_completions WHERE entry_id = ? ORDER BY occurrence_at`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()
	return collectCompletions(rows)
}

func (s *CompletionStore) ListByDateRange(start, end time.Time) ([]*model.ChoreCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM chore_completions
		WHERE occurrence_at >= ? AND occurrence_at < ?
		ORDER BY occurrence_at, entry_id`,
		normalizeOccurrence(start), normalizeOccurrence(end),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions by range: %w", err)
	}
	defer rows.Close()
	return collectCompletions(rows)
}

func collectCompletions(rows *sql.Rows) ([]*model.ChoreCompletion, error) {
	var completions []*model.ChoreCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (s *CompletionStore) DeleteByOccurrence(entryID int64, occurrenceAt time.Time) error {
	_, err := s.db.Exec(
		`DELETE FROM chore_completions WHERE entry_id = ? AND occurrence_at = ?`,
		entryID, normalizeOccurrence(occurrenceAt),
	)
	if err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}
