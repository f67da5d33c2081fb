package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"calgrid/internal/calendar"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP endpoint.
type BasicAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// WrapperClass is the class attribute of the rendered <table>.
	WrapperClass string `yaml:"wrapper_class"`

	// CSSPath is the stylesheet inlined into the served page. It is read on
	// every request so edits show up without a restart.
	CSSPath string `yaml:"css_path"`

	// Weeks is the number of weeks shown (0..255).
	Weeks int `yaml:"weeks"`

	// WeekAsRow lays out one week per table row; false lays out one week
	// per column.
	WeekAsRow bool `yaml:"week_as_row"`

	// Header toggles weekday labels.
	Header bool `yaml:"header"`

	// FirstDay selects the first visible day. Supported forms:
	//   first_day: today
	//   first_day: monday            (any weekday name)
	//   first_day: {day_of_week: 0}  (0 = Monday)
	//   first_day: {day_of_month: 0} (0 = the 1st)
	FirstDay StartDay `yaml:"first_day"`

	// Timezone is the IANA zone used to decide "today" and to display zoned
	// event times. Empty means the host's local zone.
	Timezone string `yaml:"timezone"`

	// Listen, if set, enables the HTTP endpoint on this address.
	Listen string `yaml:"listen"`

	// Refresh is a cron schedule on which the served calendar is checked
	// for a day change and re-rendered ahead of requests.
	Refresh string `yaml:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty"`

	// Calendars maps a calendar name (used as CSS class) to its source, in
	// document order.
	Calendars Calendars `yaml:"calendars"`
}

const (
	DefaultWeeks   = 4
	DefaultRefresh = "1 0 * * *"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		WrapperClass: "calendar",
		CSSPath:      "calendar.css",
		Weeks:        DefaultWeeks,
		WeekAsRow:    true,
		Header:       true,
		FirstDay:     StartDay{calendar.DayOfWeek(0)},
		Refresh:      DefaultRefresh,
		LogLevel:     "info",
		Calendars:    Calendars{},
	}
}

// Normalize fills in missing values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Refresh == "" {
		c.Refresh = DefaultRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Calendars == nil {
		c.Calendars = Calendars{}
	}
	for i := range c.Calendars {
		c.Calendars[i].normalize()
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.Weeks < 0 || c.Weeks > calendar.MaxWeeks {
		return fmt.Errorf("weeks must be in 0..%d, got %d", calendar.MaxWeeks, c.Weeks)
	}
	if err := c.FirstDay.Validate(); err != nil {
		return fmt.Errorf("first_day: %w", err)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}
	if _, err := cron.ParseStandard(c.Refresh); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	seen := make(map[string]bool, len(c.Calendars))
	for _, s := range c.Calendars {
		if seen[s.Name] {
			return fmt.Errorf("calendar %q is defined twice", s.Name)
		}
		seen[s.Name] = true
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RenderConfig extracts the layout parameters used by the calendar engine.
func (c *Config) RenderConfig() calendar.RenderConfig {
	return calendar.RenderConfig{
		Weeks:        c.Weeks,
		WeekAsRow:    c.WeekAsRow,
		Header:       c.Header,
		FirstDay:     c.FirstDay.StartDay,
		WrapperClass: c.WrapperClass,
		Location:     c.Location(),
	}
}

// Parse decodes YAML on top of the defaults, so keys that are absent keep
// their default value, then normalizes and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML on top of the defaults
//   - normalize and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
