package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences generated from RRULEs.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandOccurrences replaces every event carrying an RRULE with one event per
// occurrence inside the configured range. It handles:
//
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides, which replace the matching occurrence
//   - all-day semantics
//
// Events without RRULE are returned unchanged and are not range filtered, so
// the result still contains everything the feed had outside the range.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]ParsedEvent, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.UID != "" {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}
	used := make(map[string]bool)

	out := make([]ParsedEvent, 0, len(events))
	for _, ev := range events {
		if ev.IsOverride && ev.UID != "" {
			continue
		}
		if ev.RawRRule == "" {
			out = append(out, ev)
			continue
		}

		occ, hitCap, err := expandRecurring(ev, overridesByUID[ev.UID], used, cfg)
		if err != nil {
			// Keep the base event so the feed still shows something.
			appLog.Error("expand: failed to parse RRULE", err, "calendar", ev.Source, "uid", ev.UID, "rrule", ev.RawRRule)
			out = append(out, ev)
			continue
		}
		if hitCap {
			appLog.Warn("expand: truncated occurrences for UID due to cap", "calendar", ev.Source, "uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		}
		out = append(out, occ...)
	}

	// Overrides that did not replace an occurrence in range are still events
	// of their own (e.g. an instance moved into the range).
	for _, ev := range events {
		if ev.IsOverride && ev.UID != "" && !used[overrideKey(ev)] {
			out = append(out, ev)
		}
	}

	return out, nil
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, used map[string]bool, cfg ExpandConfig) ([]ParsedEvent, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, err
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	times := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]ParsedEvent, 0, len(times))
	for _, start := range times {
		if o, ok := findOverrideForStart(overrides, start, ev.StartKind == calendar.StartDate); ok {
			used[overrideKey(o)] = true
			out = append(out, o)
			continue
		}
		occ := ev
		occ.RawRRule = ""
		occ.ExDates = nil
		occ.Start = start
		occ.End = start.Add(dur)
		out = append(out, occ)
	}
	return out, hitCap, nil
}

// findOverrideForStart finds the override whose RECURRENCE-ID matches start.
// For all-day events the calendar day is compared instead of the instant.
func findOverrideForStart(overrides []ParsedEvent, start time.Time, allDay bool) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(start) {
			return ov, true
		}
		if allDay {
			ry, rm, rd := ov.Recurrence.Date()
			sy, sm, sd := start.Date()
			if ry == sy && rm == sm && rd == sd {
				return ov, true
			}
		}
	}
	return ParsedEvent{}, false
}

func overrideKey(ev ParsedEvent) string {
	return ev.UID + "|" + ev.Recurrence.UTC().Format(time.RFC3339Nano)
}
