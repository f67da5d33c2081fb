package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	"calgrid/internal/ics"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20240612T090000\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

type fixture struct {
	srv   *Server
	loads int32
	fail  atomic.Bool
	clock time.Time
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	css := filepath.Join(t.TempDir(), "calendar.css")
	require.NoError(t, os.WriteFile(css, []byte("td{}"), 0o600))

	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Weeks = 1
	cfg.CSSPath = css
	if mutate != nil {
		mutate(cfg)
	}

	f := &fixture{clock: time.Date(2024, time.June, 12, 12, 0, 0, 0, time.UTC)}
	feeds := []calendar.Feed{{
		Name: "work",
		Loader: calendar.LoaderFunc(func(context.Context) ([]byte, error) {
			atomic.AddInt32(&f.loads, 1)
			if f.fail.Load() {
				return nil, errors.New("feed offline")
			}
			return []byte(feed), nil
		}),
	}}
	f.srv = NewServer(cfg, feeds, &ics.Parser{Location: time.UTC})
	f.srv.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) get(t *testing.T, path string, auth ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(auth) == 2 {
		req.SetBasicAuth(auth[0], auth[1])
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexServesDocument(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, "<style>td{}</style>")
	assert.Contains(t, body, `<table class="calendar">`)
	assert.Contains(t, body, `<div class="work">09:00 Standup</div>`)
	assert.Contains(t, body, `class="Wed today work"`)
}

func TestIndexUsesCacheUntilDayChanges(t *testing.T) {
	f := newFixture(t, nil)
	var rendered []string
	f.srv.OnRender(func(html string) { rendered = append(rendered, html) })

	first := f.get(t, "/").Body.String()
	second := f.get(t, "/").Body.String()
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.loads))
	assert.Len(t, rendered, 1)

	f.clock = f.clock.Add(6 * time.Hour)
	f.get(t, "/")
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.loads), "same day")

	f.clock = f.clock.Add(12 * time.Hour)
	third := f.get(t, "/").Body.String()
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.loads), "next day")
	assert.Len(t, rendered, 2)
	assert.Contains(t, third, `class="Wed past work"`)
	assert.Contains(t, third, `class="Thu today"`)
}

func TestSlowRenderHookDoesNotBlockNextRender(t *testing.T) {
	f := newFixture(t, nil)

	var clock atomic.Int64
	clock.Store(f.clock.Unix())
	f.srv.now = func() time.Time { return time.Unix(clock.Load(), 0).UTC() }

	release := make(chan struct{})
	entered := make(chan struct{})
	var hooks int32
	f.srv.OnRender(func(string) {
		if atomic.AddInt32(&hooks, 1) == 1 {
			close(entered)
			<-release
		}
	})
	defer close(release)

	go f.srv.Current(context.Background())
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first render did not reach the hook")
	}

	clock.Add(int64(24 * time.Hour / time.Second))
	done := make(chan error, 1)
	go func() {
		_, err := f.srv.Current(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("render waited for the previous hook")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.loads))
}

func TestRenderFailureKeepsPreviousCache(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, http.StatusOK, f.get(t, "/").Code)

	f.fail.Store(true)
	f.clock = f.clock.AddDate(0, 0, 1)

	rec := f.get(t, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "feed offline")

	require.NotNil(t, f.srv.cache)
	assert.Equal(t, calendar.NewDate(2024, time.June, 12), f.srv.cache.day)

	err := f.srv.Refresh(context.Background())
	assert.ErrorIs(t, err, calendar.ErrAllSourcesFailed)

	f.fail.Store(false)
	assert.NoError(t, f.srv.Refresh(context.Background()))
	assert.Equal(t, calendar.NewDate(2024, time.June, 13), f.srv.cache.day)
}

func TestMissingStylesheet(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CSSPath = "/nonexistent/calendar.css" })
	rec := f.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<style></style>")
}

func TestHealthAndNotFound(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.get(t, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.get(t, "/favicon.ico").Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.loads))
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	assert.Equal(t, http.StatusOK, f.get(t, "/health").Code)

	rec := f.get(t, "/")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	assert.Equal(t, http.StatusUnauthorized, f.get(t, "/", "admin", "wrong").Code)
	assert.Equal(t, http.StatusOK, f.get(t, "/", "admin", "secret").Code)
}

func TestBasicAuthDisabledWhenIncomplete(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	})
	assert.Equal(t, http.StatusOK, f.get(t, "/").Code)
}

func TestStartServerStopsOnCancel(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Listen = "127.0.0.1:0" })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, f.srv) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
