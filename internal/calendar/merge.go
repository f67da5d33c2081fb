package calendar

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	appLog "calgrid/internal/log"
)

var (
	// ErrAllSourcesFailed is returned when no configured source could be
	// loaded and parsed.
	ErrAllSourcesFailed = errors.New("all calendar sources failed")
	// ErrEmptyWindow is returned when the window contains no days.
	ErrEmptyWindow = errors.New("calendar window is empty")
	// ErrNoSources is returned when nothing is configured at all. It matches
	// ErrAllSourcesFailed as well.
	ErrNoSources = fmt.Errorf("%w: no calendar sources configured", ErrAllSourcesFailed)
)

// SourceError describes why a single source was left out of a render.
type SourceError struct {
	Source string
	Stage  string // "load" or "parse"
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("calendar %q: %s: %v", e.Source, e.Stage, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// SourceResult is the outcome of loading one source: either a table or an
// error.
type SourceResult struct {
	Name  string
	Table SourceTable
	Err   error
}

// Day is one entry of a merged table. Events is nil when no source had
// anything on that date.
type Day struct {
	Date   Date
	Events []DisplayEvent
}

// MergedTable covers a window day by day in ascending order.
type MergedTable []Day

// Merge concatenates, for every day of w, the events of each successful
// source in the order the results are given. Failed sources are logged and
// skipped. If every source failed the result is ErrAllSourcesFailed wrapping
// each source error.
func Merge(w Window, results []SourceResult) (MergedTable, error) {
	if len(results) == 0 {
		return nil, ErrNoSources
	}

	var (
		ok   []SourceResult
		errs *multierror.Error
	)
	for _, r := range results {
		if r.Err != nil {
			appLog.Error("calendar dropped from render", r.Err, "calendar", r.Name)
			errs = multierror.Append(errs, r.Err)
			continue
		}
		ok = append(ok, r)
	}
	if len(ok) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errs.ErrorOrNil())
	}

	merged := make(MergedTable, 0, max(w.Days(), 0))
	w.Each(func(d Date) {
		var events []DisplayEvent
		for _, r := range ok {
			if evs, found := r.Table[d]; found {
				events = append(events, evs...)
			}
		}
		merged = append(merged, Day{Date: d, Events: events})
	})
	return merged, nil
}
