package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	appLog "calgrid/internal/log"
	"calgrid/internal/page"
)

// Server serves the rendered calendar over HTTP.
//
// The rendered table is cached together with the day it was rendered for and
// is only rebuilt once the day (in the configured timezone) changes.
type Server struct {
	cfg    *config.Config
	feeds  []calendar.Feed
	parser calendar.Parser
	mux    *http.ServeMux

	// now is replaced in tests.
	now func() time.Time

	// renderMu serializes renders; cacheMu guards cache.
	renderMu sync.Mutex
	cacheMu  sync.RWMutex
	cache    *renderCache

	onRender func(html string)
}

// renderCache holds the last successful render and the day it belongs to.
type renderCache struct {
	day        calendar.Date
	html       string
	renderedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, feeds []calendar.Feed, parser calendar.Parser) *Server {
	s := &Server{
		cfg:    cfg,
		feeds:  feeds,
		parser: parser,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// OnRender registers fn to be called with every freshly rendered table.
func (s *Server) OnRender(fn func(html string)) {
	s.onRender = fn
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/", s.handleIndex)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := s.Current(r.Context())
	if err != nil {
		appLog.Error("calendar render failed", err, "path", r.URL.Path)
		http.Error(w, "calendar render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page.Document(s.readCSS(), body)))
}

// readCSS loads the stylesheet on every request so edits apply without a
// restart. A missing or unreadable file yields an empty style.
func (s *Server) readCSS() string {
	if s.cfg == nil || s.cfg.CSSPath == "" {
		return ""
	}
	data, err := os.ReadFile(s.cfg.CSSPath)
	if err != nil {
		appLog.Warn("stylesheet unavailable, serving without style", "path", s.cfg.CSSPath, "err", err)
		return ""
	}
	return string(data)
}

// today returns the current calendar day in the configured timezone.
func (s *Server) today() calendar.Date {
	return calendar.DateOf(s.now().In(s.cfg.Location()))
}

func (s *Server) cached(day calendar.Date) (string, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	if s.cache != nil && s.cache.day == day {
		return s.cache.html, true
	}
	return "", false
}

// Current returns the table for today, rendering it if the cached one belongs
// to another day. A failed render leaves the previous cache in place. The
// OnRender hook runs after the render lock is released.
func (s *Server) Current(ctx context.Context) (string, error) {
	day := s.today()
	if html, ok := s.cached(day); ok {
		return html, nil
	}

	html, fresh, err := s.render(ctx, day)
	if err != nil {
		return "", err
	}
	if fresh && s.onRender != nil {
		s.onRender(html)
	}
	return html, nil
}

// render builds and caches the table for day. fresh is false when another
// caller rendered it first.
func (s *Server) render(ctx context.Context, day calendar.Date) (html string, fresh bool, err error) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	// Another request may have rendered while we waited.
	if html, ok := s.cached(day); ok {
		return html, false, nil
	}

	appLog.Info("rendering calendar", "day", day, "config", s.cfg.RenderConfig())
	html, err = calendar.Render(ctx, s.cfg.RenderConfig(), day, s.feeds, s.parser)
	if err != nil {
		return "", false, err
	}

	s.cacheMu.Lock()
	s.cache = &renderCache{day: day, html: html, renderedAt: s.now()}
	s.cacheMu.Unlock()
	return html, true, nil
}

// Refresh renders ahead of requests when the day has changed. It is meant to
// run from the refresh schedule.
func (s *Server) Refresh(ctx context.Context) error {
	_, err := s.Current(ctx)
	return err
}

// StartServer serves s on cfg.Listen until ctx is canceled, then shuts down
// gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("stopping HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
