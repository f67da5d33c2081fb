package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"calgrid/internal/markup"
)

// Day classification classes.
const (
	ClassPast   = "past"
	ClassToday  = "today"
	ClassFuture = "future"
)

// GridOptions controls table layout.
type GridOptions struct {
	// WeekAsRow lays each week out as a table row. Otherwise each day is a
	// single-cell row and the weeks form columns of 7 rows.
	WeekAsRow bool
	// Header adds weekday labels: a header row for WeekAsRow, a leading
	// <th> per day row otherwise.
	Header bool
	// WrapperClass, if set, becomes the class of the <table>.
	WrapperClass string
}

// RenderGrid lays the merged table out as an HTML table. The table must
// cover a whole number of weeks.
//
// With WeekAsRow every week is one row of 7 cells. Otherwise every day is a
// row of its own, in date order, and each week of 7 rows is wrapped in its
// own <tbody>.
func RenderGrid(days MergedTable, today Date, opts GridOptions) (string, error) {
	if len(days) == 0 {
		return "", ErrEmptyWindow
	}
	if len(days)%7 != 0 {
		return "", fmt.Errorf("calendar: %d days is not a whole number of weeks", len(days))
	}

	var b strings.Builder
	b.WriteString("<table")
	if opts.WrapperClass != "" {
		b.WriteByte(' ')
		b.WriteString(markup.Class([]string{opts.WrapperClass}))
	}
	b.WriteByte('>')

	if opts.WeekAsRow {
		if opts.Header {
			var hdr strings.Builder
			wd := days[0].Date.Weekday()
			for i := 0; i < 7; i++ {
				hdr.WriteString(headerCell(wd))
				wd = (wd + 1) % 7
			}
			b.WriteString(markup.Element("tr", "", hdr.String()))
		}
		for week := 0; week < len(days); week += 7 {
			var row strings.Builder
			for _, day := range days[week : week+7] {
				row.WriteString(dayCell(day, today))
			}
			b.WriteString(markup.Element("tr", "", row.String()))
		}
	} else {
		for week := 0; week < len(days); week += 7 {
			var body strings.Builder
			for _, day := range days[week : week+7] {
				var row strings.Builder
				if opts.Header {
					row.WriteString(headerCell(day.Date.Weekday()))
				}
				row.WriteString(dayCell(day, today))
				body.WriteString(markup.Element("tr", "", row.String()))
			}
			b.WriteString(markup.Element("tbody", "", body.String()))
		}
	}

	b.WriteString("</table>")
	return b.String(), nil
}

func headerCell(wd time.Weekday) string {
	name := shortWeekday(wd)
	class := markup.Class([]string{name})
	return markup.Element("th", class, markup.Element("div", class, name))
}

// relation classifies d against today.
func relation(d, today Date) string {
	switch c := d.Compare(today); {
	case c < 0:
		return ClassPast
	case c > 0:
		return ClassFuture
	default:
		return ClassToday
	}
}

// dayClasses returns the weekday, the relation to today and every event
// class, without duplicates, in that order.
func dayClasses(day Day, today Date) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(c string) {
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	add(shortWeekday(day.Date.Weekday()))
	add(relation(day.Date, today))
	for _, ev := range day.Events {
		for _, c := range ev.Classes {
			add(c)
		}
	}
	return out
}

func dayCell(day Day, today Date) string {
	var content strings.Builder
	content.WriteString(markup.Element("div", "", strconv.Itoa(day.Date.Day)))
	for _, ev := range day.Events {
		content.WriteString(eventFragment(ev))
	}
	return markup.Element("td", markup.Class(dayClasses(day, today)), content.String())
}

func eventFragment(ev DisplayEvent) string {
	text := ev.Title
	if ev.Time != nil {
		text = ev.Time.String() + " " + ev.Title
	}
	return markup.Element("div", markup.Class(ev.Classes), markup.Text(text))
}
