package recurrence

import (
	"sort"
	"time"
)

// Bounds how far a single expansion will walk a series. Keeps every
// query finite even for unbounded rules with tiny intervals.
const maxIterations = 10000

// Expand returns the occurrence instants of the series anchored at
// anchor that fall within the half-open window [windowStart, windowEnd).
//
// The anchor itself is the first occurrence. All period arithmetic is
// performed on the wall clock in loc, so a daily 9am chore stays at 9am
// local time across daylight-saving shifts. Monthly rules whose day of
// month does not exist in a given month land on that month's last valid
// day rather than skipping the month.
//
// The result is strictly ascending and duplicate-free. Expand is a pure
// function of its arguments; calling it again for an overlapping window
// yields the same instants.
func Expand(rule Rule, anchor time.Time, loc *time.Location, windowStart, windowEnd time.Time) []time.Time {
	if loc == nil {
		loc = time.Local
	}
	if !windowStart.Before(windowEnd) {
		return nil
	}

	it := newIterator(rule, anchor.In(loc))
	var out []time.Time
	for i := 0; i < maxIterations; i++ {
		t := it.next()
		if t.IsZero() || !t.Before(windowEnd) {
			break
		}
		if !t.Before(windowStart) {
			out = append(out, t)
		}
	}
	return out
}

// Covers reports whether instant is an occurrence the series actually
// generates. Used to reject fabricated completion instants.
func Covers(rule Rule, anchor time.Time, loc *time.Location, instant time.Time) bool {
	occs := Expand(rule, anchor, loc, instant, instant.Add(time.Second))
	return len(occs) > 0 && occs[0].Equal(instant)
}

// iterator walks a series in order. Generation is indexed by period so
// the walk has no hidden cursor state beyond its position.
type iterator struct {
	rule    Rule
	anchor  time.Time      // wall-clock anchor in the target location
	days    []time.Weekday // weekly selectors in chronological week order
	period  int
	sub     int // index into days within the current period
	emitted int
}

func newIterator(rule Rule, anchor time.Time) *iterator {
	it := &iterator{rule: rule, anchor: anchor}
	if rule.Freq == Weekly && len(rule.ByDay) > 0 {
		it.days = sortedWeekdays(rule.ByDay)
	}
	return it
}

// sortedWeekdays orders selectors Monday-first (the week convention
// used for period boundaries) and drops duplicates.
func sortedWeekdays(days []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]bool, len(days))
	var out []time.Weekday
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return mondayOffset(out[i]) < mondayOffset(out[j])
	})
	return out
}

func mondayOffset(d time.Weekday) int {
	return (int(d) - int(time.Monday) + 7) % 7
}

// next returns the next occurrence of the series, or the zero time once
// the rule's end condition is reached.
func (it *iterator) next() time.Time {
	for {
		if it.rule.Count > 0 && it.emitted >= it.rule.Count {
			return time.Time{}
		}

		t := it.candidate()

		// A selector week can hold candidates before the anchor; they
		// are not part of the series.
		if t.Before(it.anchor) {
			continue
		}
		if it.rule.Until != nil && t.After(*it.rule.Until) {
			return time.Time{}
		}
		it.emitted++
		return t
	}
}

// candidate produces the occurrence at the current position and
// advances it.
func (it *iterator) candidate() time.Time {
	switch it.rule.Freq {
	case Daily:
		t := it.anchor.AddDate(0, 0, it.period*it.rule.Interval)
		it.period++
		return t

	case Weekly:
		if len(it.days) == 0 {
			t := it.anchor.AddDate(0, 0, 7*it.period*it.rule.Interval)
			it.period++
			return t
		}
		t := it.weekdayInPeriod(it.period, it.days[it.sub])
		it.sub++
		if it.sub == len(it.days) {
			it.sub = 0
			it.period++
		}
		return t

	case Monthly:
		t := it.monthOccurrence(it.period * it.rule.Interval)
		it.period++
		return t

	case Yearly:
		t := it.monthOccurrence(12 * it.period * it.rule.Interval)
		it.period++
		return t
	}
	return time.Time{}
}

// weekdayInPeriod resolves the given weekday within the period-th
// selector week, carrying the anchor's clock time.
func (it *iterator) weekdayInPeriod(period int, day time.Weekday) time.Time {
	a := it.anchor
	monday := a.AddDate(0, 0, -mondayOffset(a.Weekday())+7*it.rule.Interval*period)
	return time.Date(
		monday.Year(), monday.Month(), monday.Day()+mondayOffset(day),
		a.Hour(), a.Minute(), a.Second(), 0,
		a.Location(),
	)
}

// monthOccurrence returns the occurrence months after the anchor,
// clamping the target day of month to the month's last valid day.
func (it *iterator) monthOccurrence(months int) time.Time {
	a := it.anchor

	day := it.rule.ByMonthDay
	if day == 0 {
		day = a.Day()
	}

	mi := int(a.Month()) - 1 + months
	year := a.Year() + mi/12
	month := time.Month(mi%12 + 1)

	if last := daysInMonth(year, month); day > last {
		day = last
	}

	return time.Date(
		year, month, day,
		a.Hour(), a.Minute(), a.Second(), 0,
		a.Location(),
	)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
