package ics

import (
	"time"

	"calgrid/internal/calendar"
)

// Parser adapts ParseICS (and optional recurrence expansion) to the
// calendar engine.
type Parser struct {
	// Expand names the calendars whose RRULEs are expanded into one event per
	// occurrence inside the rendered window. Other calendars show a recurring
	// event only on its DTSTART day.
	Expand map[string]bool
	// Location anchors the window bounds used for expansion. nil means
	// time.Local.
	Location *time.Location
}

func (p *Parser) Parse(source string, body []byte, w calendar.Window) ([]calendar.RawEvent, error) {
	parsed, err := ParseICS(source, body)
	if err != nil {
		return nil, err
	}

	if p.Expand[source] {
		loc := p.Location
		if loc == nil {
			loc = time.Local
		}
		parsed, err = ExpandOccurrences(parsed, ExpandConfig{
			RangeStart: w.Start.Time(loc),
			// Between is inclusive; stop just before the first day after the window.
			RangeEnd: w.End.Time(loc).Add(-time.Nanosecond),
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]calendar.RawEvent, 0, len(parsed))
	for _, ev := range parsed {
		out = append(out, ev.Raw())
	}
	return out, nil
}
