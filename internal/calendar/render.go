package calendar

import (
	"context"
	"fmt"
	"time"

	appLog "calgrid/internal/log"
)

// Loader fetches the raw text of one calendar feed.
type Loader interface {
	Load(ctx context.Context) ([]byte, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) ([]byte, error)

func (f LoaderFunc) Load(ctx context.Context) ([]byte, error) { return f(ctx) }

// Parser turns feed text into events. window is the range being rendered;
// parsers that expand recurrences use it to bound the expansion.
type Parser interface {
	Parse(source string, body []byte, window Window) ([]RawEvent, error)
}

// Feed is one named calendar source. The name doubles as the CSS class of
// its events.
type Feed struct {
	Name   string
	Loader Loader
}

// RenderConfig holds the layout parameters of a render.
type RenderConfig struct {
	Weeks        int
	WeekAsRow    bool
	Header       bool
	FirstDay     StartDay
	WrapperClass string
	// Location is the display zone for zoned event times. nil means time.Local.
	Location *time.Location
}

// Render builds the HTML table for the window around today. Feeds are loaded
// one after another in the given order; a feed that fails to load or parse is
// logged and left out.
func Render(ctx context.Context, cfg RenderConfig, today Date, feeds []Feed, parser Parser) (string, error) {
	w, err := NewWindow(today, cfg.FirstDay, cfg.Weeks)
	if err != nil {
		return "", err
	}
	if w.Days() == 0 {
		return "", ErrEmptyWindow
	}
	appLog.Info("building calendar", "today", today, "start", w.Start, "end", w.End, "calendars", len(feeds))

	results := make([]SourceResult, 0, len(feeds))
	for _, f := range feeds {
		results = append(results, loadFeed(ctx, f, parser, w, cfg.Location))
	}

	merged, err := Merge(w, results)
	if err != nil {
		return "", err
	}

	return RenderGrid(merged, today, GridOptions{
		WeekAsRow:    cfg.WeekAsRow,
		Header:       cfg.Header,
		WrapperClass: cfg.WrapperClass,
	})
}

func loadFeed(ctx context.Context, f Feed, parser Parser, w Window, loc *time.Location) SourceResult {
	body, err := f.Loader.Load(ctx)
	if err != nil {
		return SourceResult{Name: f.Name, Err: &SourceError{Source: f.Name, Stage: "load", Err: err}}
	}
	events, err := parser.Parse(f.Name, body, w)
	if err != nil {
		return SourceResult{Name: f.Name, Err: &SourceError{Source: f.Name, Stage: "parse", Err: err}}
	}
	table := Bucket(events, f.Name, loc)
	appLog.Info("got calendar", "calendar", f.Name, "events", len(events), "days", len(table))
	return SourceResult{Name: f.Name, Table: table}
}

// String describes the config for logging.
func (c RenderConfig) String() string {
	return fmt.Sprintf("weeks=%d week_as_row=%t header=%t first_day=%s", c.Weeks, c.WeekAsRow, c.Header, c.FirstDay)
}
