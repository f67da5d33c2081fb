package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// SourceKind selects how a calendar feed is retrieved.
type SourceKind string

const (
	// KindURL fetches the feed on every render.
	KindURL SourceKind = "url"
	// KindFile reads a local file on every render.
	KindFile SourceKind = "file"
	// KindCachedURL keeps a local copy and refetches it after RefreshHours.
	KindCachedURL SourceKind = "cached_url"
	// KindCachedURLAuth is KindCachedURL with a bearer token obtained from
	// TokenURL before each refresh.
	KindCachedURLAuth SourceKind = "cached_url_auth"
)

// Source describes one calendar feed.
type Source struct {
	// Name is the mapping key; it is also the CSS class of the feed's events.
	Name string `yaml:"-"`

	Kind         SourceKind `yaml:"kind,omitempty"`
	URL          string     `yaml:"url,omitempty"`
	Path         string     `yaml:"path,omitempty"`
	RefreshHours int        `yaml:"refresh_hours,omitempty"`
	TokenURL     string     `yaml:"token_url,omitempty"`
	TokenBody    string     `yaml:"token_body,omitempty"`

	// ExpandRecurrences shows every RRULE occurrence inside the window
	// instead of only the first one.
	ExpandRecurrences bool `yaml:"expand_recurrences,omitempty"`
}

// normalize infers Kind when it was left out.
func (s *Source) normalize() {
	if s.Kind != "" {
		return
	}
	switch {
	case s.URL != "" && s.Path != "" && s.TokenURL != "":
		s.Kind = KindCachedURLAuth
	case s.URL != "" && s.Path != "":
		s.Kind = KindCachedURL
	case s.URL != "":
		s.Kind = KindURL
	case s.Path != "":
		s.Kind = KindFile
	}
}

// Validate checks that the fields required by Kind are present.
func (s Source) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("calendar name is empty")
	}
	// The name becomes a single CSS class on every event of the calendar.
	if strings.ContainsFunc(s.Name, unicode.IsSpace) {
		return fmt.Errorf("calendar %q: name must not contain whitespace", s.Name)
	}
	var missing []string
	need := func(field, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	switch s.Kind {
	case KindURL:
		need("url", s.URL)
	case KindFile:
		need("path", s.Path)
	case KindCachedURL:
		need("url", s.URL)
		need("path", s.Path)
	case KindCachedURLAuth:
		need("url", s.URL)
		need("path", s.Path)
		need("token_url", s.TokenURL)
	case "":
		return fmt.Errorf("calendar %q: no url or path given", s.Name)
	default:
		return fmt.Errorf("calendar %q: unknown kind %q", s.Name, s.Kind)
	}
	if len(missing) > 0 {
		return fmt.Errorf("calendar %q: %s source needs %s", s.Name, s.Kind, strings.Join(missing, ", "))
	}
	if s.RefreshHours < 0 {
		return fmt.Errorf("calendar %q: refresh_hours must not be negative", s.Name)
	}
	return nil
}

// Calendars is an ordered list of sources, written in YAML as a mapping from
// name to source. Document order is kept because it decides the order of
// events inside a day.
type Calendars []Source

func (c *Calendars) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: calendars must be a mapping of name to source", value.Line)
	}
	out := make(Calendars, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]

		var src Source
		switch val.Kind {
		case yaml.ScalarNode:
			// Shorthand: "name: https://..." or "name: ./file.ics".
			if isURL(val.Value) {
				src.URL = val.Value
			} else {
				src.Path = val.Value
			}
		default:
			if err := val.Decode(&src); err != nil {
				return fmt.Errorf("calendar %q: %w", key.Value, err)
			}
		}
		src.Name = key.Value
		src.normalize()
		out = append(out, src)
	}
	*c = out
	return nil
}

func (c Calendars) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, s := range c {
		var val yaml.Node
		if err := val.Encode(s); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Name},
			&val,
		)
	}
	return node, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
