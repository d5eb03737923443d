// Package recurrence expands repetition rules attached to calendar
// entries into concrete occurrence instants. Rules use a textual
// RRULE-style form such as "FREQ=WEEKLY;BYDAY=MO,WE;INTERVAL=2".
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
	Yearly
)

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var dayAbbrev = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

// Rule describes how an entry repeats. The zero value is not valid;
// build rules through Parse.
type Rule struct {
	Freq       Freq
	Interval   int            // every N periods; default 1
	ByDay      []time.Weekday // WEEKLY only: which weekdays within each period
	ByMonthDay int            // MONTHLY only: day of month (0 = anchor's day)
	Count      int            // total occurrences in the series (0 = unlimited)
	Until      *time.Time     // no occurrences after this instant (nil = no limit)
}

// Parse parses a rule string like "FREQ=MONTHLY;BYMONTHDAY=15;COUNT=6".
func Parse(rule string) (Rule, error) {
	if rule == "" {
		return Rule{}, fmt.Errorf("empty rule")
	}

	r := Rule{Interval: 1}
	var hasFreq bool

	for _, part := range strings.Split(rule, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return Rule{}, fmt.Errorf("invalid rule part: %q", part)
		}

		switch key {
		case "FREQ":
			f, known := freqFromName[val]
			if !known {
				return Rule{}, fmt.Errorf("unknown frequency: %q", val)
			}
			r.Freq = f
			hasFreq = true

		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid interval: %q", val)
			}
			r.Interval = n

		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				wd, known := dayNames[strings.TrimSpace(d)]
				if !known {
					return Rule{}, fmt.Errorf("unknown day: %q", d)
				}
				r.ByDay = append(r.ByDay, wd)
			}

		case "BYMONTHDAY":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 || n > 31 {
				return Rule{}, fmt.Errorf("invalid BYMONTHDAY: %q", val)
			}
			r.ByMonthDay = n

		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil || n < 1 {
				return Rule{}, fmt.Errorf("invalid count: %q", val)
			}
			r.Count = n

		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", val)
			if err != nil {
				t, err = time.Parse("20060102", val)
				if err != nil {
					return Rule{}, fmt.Errorf("invalid UNTIL: %q", val)
				}
			}
			r.Until = &t

		default:
			return Rule{}, fmt.Errorf("unsupported rule key: %q", key)
		}
	}

	if !hasFreq {
		return Rule{}, fmt.Errorf("FREQ is required")
	}
	if len(r.ByDay) > 0 && r.Freq != Weekly {
		return Rule{}, fmt.Errorf("BYDAY is only valid with FREQ=WEEKLY")
	}
	if r.ByMonthDay > 0 && r.Freq != Monthly {
		return Rule{}, fmt.Errorf("BYMONTHDAY is only valid with FREQ=MONTHLY")
	}

	return r, nil
}

// String serializes the rule back to its textual form.
func (r Rule) String() string {
	parts := []string{"FREQ=" + freqNames[r.Freq]}

	if r.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.Interval))
	}
	if len(r.ByDay) > 0 {
		var days []string
		for _, d := range r.ByDay {
			days = append(days, dayAbbrev[d])
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if r.ByMonthDay > 0 {
		parts = append(parts, fmt.Sprintf("BYMONTHDAY=%d", r.ByMonthDay))
	}
	if r.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", r.Count))
	}
	if r.Until != nil {
		parts = append(parts, "UNTIL="+r.Until.Format("20060102T150405Z"))
	}

	return strings.Join(parts, ";")
}

// AnchorMatches reports whether anchor can be the first occurrence of
// the series: a rule with explicit selectors only generates instants
// matching them, so the anchor must match too.
func (r Rule) AnchorMatches(anchor time.Time) bool {
	if len(r.ByDay) > 0 {
		found := false
		for _, d := range r.ByDay {
			if anchor.Weekday() == d {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.ByMonthDay > 0 && anchor.Day() != r.ByMonthDay {
		return false
	}
	return true
}

// Describe returns a human-readable summary of the rule.
func (r Rule) Describe() string {
	switch r.Freq {
	case Daily:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d days", r.Interval)
		}
		return "Repeats daily"
	case Weekly:
		prefix := "Repeats weekly"
		if r.Interval > 1 {
			prefix = fmt.Sprintf("Repeats every %d weeks", r.Interval)
		}
		if len(r.ByDay) > 0 {
			var names []string
			for _, d := range r.ByDay {
				names = append(names, d.String()[:3])
			}
			return prefix + " on " + strings.Join(names, ", ")
		}
		return prefix
	case Monthly:
		suffix := ""
		if r.ByMonthDay > 0 {
			suffix = fmt.Sprintf(" on day %d", r.ByMonthDay)
		}
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d months", r.Interval) + suffix
		}
		return "Repeats monthly" + suffix
	case Yearly:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d years", r.Interval)
		}
		return "Repeats yearly"
	}
	return ""
}
