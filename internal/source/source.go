// Package source retrieves raw calendar text for each configured feed.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	appLog "calgrid/internal/log"
)

// File reads a local .ics file.
type File struct {
	Path string
}

func (f File) Load(_ context.Context) ([]byte, error) {
	return os.ReadFile(f.Path)
}

// URL downloads a feed on every load.
type URL struct {
	URL     string
	Fetcher *Fetcher
}

func (u URL) Load(ctx context.Context) ([]byte, error) {
	return u.Fetcher.Get(ctx, u.URL, "")
}

// CachedURL keeps a copy of the feed at Path and downloads it again once the
// copy is older than MaxAge (or missing).
type CachedURL struct {
	URL     string
	Path    string
	MaxAge  time.Duration
	Fetcher *Fetcher

	// TokenURL and TokenBody, when TokenURL is set, are used to obtain a
	// bearer token before each download.
	TokenURL  string
	TokenBody string

	// now is replaced in tests.
	now func() time.Time
}

func (c CachedURL) Load(ctx context.Context) ([]byte, error) {
	if !c.needsRefresh() {
		return os.ReadFile(c.Path)
	}

	bearer := ""
	if c.TokenURL != "" {
		appLog.Info("refreshing cached calendar, authenticating first", "url", redactURL(c.URL))
		tok, err := c.Fetcher.Token(ctx, c.TokenURL, c.TokenBody)
		if err != nil {
			return nil, err
		}
		bearer = tok
	} else {
		appLog.Info("refreshing cached calendar", "url", redactURL(c.URL))
	}

	body, err := c.Fetcher.Get(ctx, c.URL, bearer)
	if err != nil {
		return nil, err
	}
	if err := writeCache(c.Path, body); err != nil {
		appLog.Error("writing cached calendar failed", err, "path", c.Path)
	}
	return body, nil
}

func (c CachedURL) needsRefresh() bool {
	info, err := os.Stat(c.Path)
	if err != nil {
		return true
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return now().Sub(info.ModTime()) > c.MaxAge
}

// writeCache replaces path atomically so a reader never sees half a feed.
func writeCache(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".calgrid-cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// New builds the loader for one configured source.
func New(src config.Source, f *Fetcher) (calendar.Loader, error) {
	if f == nil {
		f = NewFetcher(nil)
	}
	switch src.Kind {
	case config.KindFile:
		return File{Path: src.Path}, nil
	case config.KindURL:
		return URL{URL: src.URL, Fetcher: f}, nil
	case config.KindCachedURL, config.KindCachedURLAuth:
		c := CachedURL{
			URL:     src.URL,
			Path:    src.Path,
			MaxAge:  time.Duration(src.RefreshHours) * time.Hour,
			Fetcher: f,
		}
		if src.Kind == config.KindCachedURLAuth {
			c.TokenURL = src.TokenURL
			c.TokenBody = src.TokenBody
		}
		return c, nil
	default:
		return nil, fmt.Errorf("calendar %q: unsupported source kind %q", src.Name, src.Kind)
	}
}

// Feeds builds the engine feeds for every configured calendar, in order.
func Feeds(cals config.Calendars, f *Fetcher) ([]calendar.Feed, error) {
	feeds := make([]calendar.Feed, 0, len(cals))
	for _, src := range cals {
		l, err := New(src, f)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, calendar.Feed{Name: src.Name, Loader: l})
	}
	return feeds, nil
}
