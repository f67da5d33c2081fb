package calendar

import (
	"fmt"
	"time"
)

// NoTitle is shown for events without a SUMMARY.
const NoTitle = "<no title>"

// RecurringClass is added to events that carry a SEQUENCE number.
const RecurringClass = "recurring"

// StartKind tells how an event's DTSTART was written.
type StartKind int

const (
	// StartDate is a date-only value (all-day event).
	StartDate StartKind = iota
	// StartFloating is a date-time without zone; its wall clock is used as is.
	StartFloating
	// StartZoned is a UTC or TZID date-time; it is converted to the display
	// location before use.
	StartZoned
)

// RawEvent is the subset of a parsed VEVENT the engine reads.
type RawEvent struct {
	Summary    string
	HasSummary bool

	Start     time.Time
	StartKind StartKind

	// HasSequence is set when the event carries a SEQUENCE number.
	HasSequence bool
}

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// DisplayEvent is an event ready to be placed in a day cell.
type DisplayEvent struct {
	Title   string
	Time    *Clock
	Classes []string
}

// localStart returns the day and (for timed events) the time of day at which
// ev starts, as seen from loc.
func (ev RawEvent) localStart(loc *time.Location) (Date, *Clock) {
	switch ev.StartKind {
	case StartDate:
		return DateOf(ev.Start), nil
	case StartZoned:
		t := ev.Start.In(loc)
		return DateOf(t), &Clock{Hour: t.Hour(), Minute: t.Minute()}
	default:
		t := ev.Start
		return DateOf(t), &Clock{Hour: t.Hour(), Minute: t.Minute()}
	}
}

// Project converts ev into a DisplayEvent owned by the named source.
// A nil loc means time.Local.
func Project(ev RawEvent, source string, loc *time.Location) DisplayEvent {
	if loc == nil {
		loc = time.Local
	}
	_, clock := ev.localStart(loc)

	title := NoTitle
	if ev.HasSummary {
		title = ev.Summary
	}

	classes := []string{source}
	if ev.HasSequence {
		classes = append(classes, RecurringClass)
	}

	return DisplayEvent{Title: title, Time: clock, Classes: classes}
}

// SourceTable holds one source's events bucketed by start day.
type SourceTable map[Date][]DisplayEvent

// Bucket projects every event and groups it by its start day. Events outside
// any particular window are kept; the merge step selects the days it needs.
func Bucket(events []RawEvent, source string, loc *time.Location) SourceTable {
	if loc == nil {
		loc = time.Local
	}
	table := make(SourceTable)
	for _, ev := range events {
		day, _ := ev.localStart(loc)
		table[day] = append(table[day], Project(ev, source, loc))
	}
	return table
}
