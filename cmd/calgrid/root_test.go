package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/config"
)

const homeFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:a\r\n" +
	"SUMMARY:Dentist\r\n" +
	"DTSTART;VALUE=DATE:20240611\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "home.ics")
	require.NoError(t, os.WriteFile(feed, []byte(homeFeed), 0o600))
	cfgPath := writeConfig(t, dir, "weeks: 2\nfirst_day: today\ncalendars:\n  home: "+feed+"\n")

	out := filepath.Join(dir, "calendar.html")
	err := run(context.Background(), options{configPath: cfgPath, output: out}, &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(data)
	assert.True(t, strings.HasPrefix(html, `<table class="calendar">`))
	assert.Equal(t, 14, strings.Count(html, "<td "))
}

func TestRunOutputWriteFailureIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "home.ics")
	require.NoError(t, os.WriteFile(feed, []byte(homeFeed), 0o600))
	cfgPath := writeConfig(t, dir, "calendars:\n  home: "+feed+"\n")

	out := filepath.Join(dir, "missing-dir", "calendar.html")
	err := run(context.Background(), options{configPath: cfgPath, output: out}, &bytes.Buffer{})
	assert.NoError(t, err)
	assert.NoFileExists(t, out)
}

func TestRunPrintsToStdout(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "weeks: 1\nheader: false\ncalendars:\n  home: "+filepath.Join(dir, "home.ics")+"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "home.ics"), []byte(homeFeed), 0o600))

	var stdout bytes.Buffer
	require.NoError(t, run(context.Background(), options{configPath: cfgPath}, &stdout))
	assert.Contains(t, stdout.String(), "<table")
	assert.NotContains(t, stdout.String(), "<th")
}

func TestRunFailsWithoutWorkingSources(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "calendars:\n  gone: "+filepath.Join(dir, "missing.ics")+"\n")
	err := run(context.Background(), options{configPath: cfgPath}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunCreatesDefaultConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	err := run(context.Background(), options{configPath: cfgPath}, &bytes.Buffer{})
	assert.Error(t, err, "no calendars configured")
	assert.FileExists(t, cfgPath)
}

func TestExpandSet(t *testing.T) {
	set := expandSet(config.Calendars{
		{Name: "a", ExpandRecurrences: true},
		{Name: "b"},
	})
	assert.Equal(t, map[string]bool{"a": true}, set)
}

func TestRootFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "output", "server", "png", "debug"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "config.yaml", cmd.Flags().Lookup("config").DefValue)
	assert.Equal(t, "o", cmd.Flags().Lookup("output").Shorthand)
	assert.Equal(t, "s", cmd.Flags().Lookup("server").Shorthand)
}
