package calendar

import (
	"errors"
	"fmt"
)

// StartDayKind selects how the first visible day is chosen.
type StartDayKind int

const (
	// StartToday starts the window on today.
	StartToday StartDayKind = iota
	// StartDayOfWeek starts on the most recent given weekday (0 = Monday).
	StartDayOfWeek
	// StartDayOfMonth starts on the most recent given day of month
	// (0 = the 1st).
	StartDayOfMonth
)

// StartDay is the start-day policy.
type StartDay struct {
	Kind  StartDayKind
	Value int
}

func Today() StartDay { return StartDay{Kind: StartToday} }
func DayOfWeek(w int) StartDay { return StartDay{Kind: StartDayOfWeek, Value: w} }
func DayOfMonth(m int) StartDay { return StartDay{Kind: StartDayOfMonth, Value: m} }

// Validate checks the policy value range.
func (s StartDay) Validate() error {
	switch s.Kind {
	case StartToday:
		return nil
	case StartDayOfWeek:
		if s.Value < 0 || s.Value > 6 {
			return fmt.Errorf("day_of_week must be in 0..6, got %d", s.Value)
		}
		return nil
	case StartDayOfMonth:
		if s.Value < 0 || s.Value > 30 {
			return fmt.Errorf("day_of_month must be in 0..30, got %d", s.Value)
		}
		return nil
	default:
		return fmt.Errorf("unknown start day kind %d", s.Kind)
	}
}

func (s StartDay) String() string {
	switch s.Kind {
	case StartDayOfWeek:
		return fmt.Sprintf("day_of_week(%d)", s.Value)
	case StartDayOfMonth:
		return fmt.Sprintf("day_of_month(%d)", s.Value)
	default:
		return "today"
	}
}

// MaxWeeks is the largest number of weeks a window may span.
const MaxWeeks = 255

// Window is the half-open range of visible days [Start, End).
type Window struct {
	Start Date
	End   Date
}

// Days returns the number of days in the window.
func (w Window) Days() int {
	return w.Start.DaysUntil(w.End)
}

// Contains reports whether d falls inside [Start, End).
func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && d.Before(w.End)
}

// Each calls fn for every day of the window in ascending order.
func (w Window) Each(fn func(Date)) {
	for d := w.Start; d.Before(w.End); d = d.AddDays(1) {
		fn(d)
	}
}

// NewWindow computes the visible range for today under the given policy.
// weeks == 0 yields an empty window (Start == End).
func NewWindow(today Date, policy StartDay, weeks int) (Window, error) {
	if weeks < 0 || weeks > MaxWeeks {
		return Window{}, fmt.Errorf("weeks must be in 0..%d, got %d", MaxWeeks, weeks)
	}
	if err := policy.Validate(); err != nil {
		return Window{}, err
	}

	start, err := windowStart(today, policy)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: start.AddDays(7 * weeks)}, nil
}

func windowStart(today Date, policy StartDay) (Date, error) {
	switch policy.Kind {
	case StartToday:
		return today, nil
	case StartDayOfWeek:
		back := ((today.WeekdayIndex()-policy.Value)%7 + 7) % 7
		return today.AddDays(-back), nil
	case StartDayOfMonth:
		return dayOfMonthStart(today, policy.Value), nil
	default:
		return Date{}, errors.New("unknown start day policy")
	}
}

// dayOfMonthStart returns the most recent occurrence of day m+1 on or before
// today. Months shorter than m+1 days use their last day instead.
func dayOfMonthStart(today Date, m int) Date {
	target := min(m+1, daysIn(today.Year, today.Month))
	if target <= today.Day {
		return Date{Year: today.Year, Month: today.Month, Day: target}
	}
	prev := Date{Year: today.Year, Month: today.Month, Day: 1}.AddDays(-1)
	return Date{Year: prev.Year, Month: prev.Month, Day: min(m+1, prev.Day)}
}
