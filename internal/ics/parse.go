package ics

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"calgrid/internal/calendar"
	appLog "calgrid/internal/log"
)

var errNoStart = errors.New("missing DTSTART")

// ParsedEvent is the normalized form of one VEVENT. Recurrence expansion and
// the conversion to calendar.RawEvent both operate on this type.
type ParsedEvent struct {
	Source string

	UID string

	Summary    string
	HasSummary bool

	Start     time.Time
	End       time.Time
	StartKind calendar.StartKind

	Seq         int
	HasSequence bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, if present
	IsOverride bool       // true if this VEVENT overrides one instance of a recurring event
}

// Raw returns the fields the calendar engine reads.
func (ev ParsedEvent) Raw() calendar.RawEvent {
	return calendar.RawEvent{
		Summary:     ev.Summary,
		HasSummary:  ev.HasSummary,
		Start:       ev.Start,
		StartKind:   ev.StartKind,
		HasSequence: ev.HasSequence,
	}
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - VEVENTs without DTSTART are skipped.
//   - DTSTART with VALUE=DATE or without a time part is a date-only start.
//   - A trailing Z or a TZID parameter makes the start zoned; anything else
//     is floating.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded but not expanded here.
func ParseICS(source string, body []byte) ([]ParsedEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(source, comp)
		if perr != nil {
			appLog.Debug("ics vevent skipped", "calendar", source, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "calendar", source, "event_count", len(events))
	return events, nil
}

func parseVEvent(source string, ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent
	out.Source = source

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return out, errNoStart
	}

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
		out.HasSummary = true
	}

	// SEQUENCE only counts when it is a valid number.
	if p := ve.GetProperty(ical.ComponentPropertySequence); p != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(p.Value)); err == nil && n >= 0 {
			out.Seq = n
			out.HasSequence = true
		}
	}

	start, kind, err := startOf(dtStart, ve)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.StartKind = kind

	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else {
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times, each with a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tzidOf(p.ICalParameters)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, err := parseICSTime(p.Value, tzidOf(p.ICalParameters)); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// startOf classifies DTSTART and resolves it to a time.Time.
func startOf(prop *ical.IANAProperty, ve *ical.VEvent) (time.Time, calendar.StartKind, error) {
	val := strings.TrimSpace(prop.Value)
	tzid := tzidOf(prop.ICalParameters)

	kind := calendar.StartFloating
	switch {
	case isDateValue(prop.ICalParameters) || !strings.Contains(val, "T"):
		kind = calendar.StartDate
	case strings.HasSuffix(val, "Z") || tzid != "":
		kind = calendar.StartZoned
	}

	if t, err := ve.GetStartAt(); err == nil {
		return t, kind, nil
	}

	// The library rejects unknown TZIDs; fall back to reading the value as
	// written.
	t, err := parseICSTime(val, "")
	if err != nil {
		return time.Time{}, kind, err
	}
	if kind == calendar.StartZoned && !strings.HasSuffix(val, "Z") {
		kind = calendar.StartFloating
	}
	return t, kind, nil
}

func isDateValue(params map[string][]string) bool {
	vs, ok := params[string(ical.ParameterValue)]
	return ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE")
}

func tzidOf(params map[string][]string) string {
	if tzs, ok := params[string(ical.ParameterTzid)]; ok && len(tzs) > 0 {
		return tzs[0]
	}
	return ""
}

// parseICSTime parses a basic ICS date or date-time. tzid, when known and
// loadable, is used for values without a trailing Z.
func parseICSTime(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	loc := time.Local
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
