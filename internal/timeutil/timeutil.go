// Package timeutil holds the process-wide timezone configuration and
// the injectable clock used for overdue computations.
package timeutil

import (
	"fmt"
	"time"
)

// Clock provides the current instant. Injected so that status
// computations are deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

// Normalizer converts between absolute instants and the configured
// local timezone. It is created once at startup and never mutated.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer resolves the given IANA timezone name. An empty name
// falls back to the system timezone.
func NewNormalizer(tzName string) (*Normalizer, error) {
	if tzName == "" {
		return &Normalizer{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tzName, err)
	}
	return &Normalizer{loc: loc}, nil
}

// MustNormalizer is NewNormalizer for tests and fixed names.
func MustNormalizer(tzName string) *Normalizer {
	n, err := NewNormalizer(tzName)
	if err != nil {
		panic(err)
	}
	return n
}

// Location returns the configured timezone.
func (n *Normalizer) Location() *time.Location { return n.loc }

// Local converts an absolute instant to local wall-clock time.
func (n *Normalizer) Local(t time.Time) time.Time { return t.In(n.loc) }

// DayBounds returns the half-open local day [start, end) containing t.
func (n *Normalizer) DayBounds(t time.Time) (time.Time, time.Time) {
	lt := t.In(n.loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, n.loc)
	return start, start.AddDate(0, 0, 1)
}

// EndOfDay returns the first instant of the local day after t.
func (n *Normalizer) EndOfDay(t time.Time) time.Time {
	_, end := n.DayBounds(t)
	return end
}
