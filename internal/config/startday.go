package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"calgrid/internal/calendar"
)

// StartDay is the YAML form of calendar.StartDay.
type StartDay struct {
	calendar.StartDay
}

var weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (s *StartDay) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		name := strings.ToLower(strings.TrimSpace(value.Value))
		if name == "today" {
			s.StartDay = calendar.Today()
			return nil
		}
		if name == "month" {
			s.StartDay = calendar.DayOfMonth(0)
			return nil
		}
		for i, wd := range weekdayNames {
			if name == wd || name == wd[:3] {
				s.StartDay = calendar.DayOfWeek(i)
				return nil
			}
		}
		return fmt.Errorf("line %d: unknown first_day %q", value.Line, value.Value)

	case yaml.MappingNode:
		var m map[string]int
		if err := value.Decode(&m); err != nil {
			return err
		}
		if len(m) != 1 {
			return fmt.Errorf("line %d: first_day needs exactly one of day_of_week, day_of_month", value.Line)
		}
		for k, v := range m {
			switch k {
			case "day_of_week":
				s.StartDay = calendar.DayOfWeek(v)
			case "day_of_month":
				s.StartDay = calendar.DayOfMonth(v)
			default:
				return fmt.Errorf("line %d: unknown first_day key %q", value.Line, k)
			}
		}
		return nil

	default:
		return fmt.Errorf("line %d: first_day must be a string or a mapping", value.Line)
	}
}

func (s StartDay) MarshalYAML() (any, error) {
	switch s.Kind {
	case calendar.StartDayOfWeek:
		return map[string]int{"day_of_week": s.Value}, nil
	case calendar.StartDayOfMonth:
		return map[string]int{"day_of_month": s.Value}, nil
	default:
		return "today", nil
	}
}
