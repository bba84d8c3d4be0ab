package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tchow-twistedxcom/tgarchive/internal/logging"
	"github.com/tchow-twistedxcom/tgarchive/internal/viewer"
)

var webLog = logging.ForComponent(logging.CompWeb)

// Loader reloads the archive for `serve --watch`.
type Loader func(ctx context.Context) (*viewer.Archive, error)

// Config defines runtime options for the web server.
type Config struct {
	ListenAddr string
	Token      string
	// ImagesDir is served at /images/ when set.
	ImagesDir string
	// Viewer configures every websocket session and window request. Sizes
	// are CSS pixels.
	Viewer viewer.Options
	// Rate limits inbound websocket frames per connection (frames/second).
	Rate float64

	// Watch reloads the archive through Load when any WatchPaths file
	// changes.
	Watch      bool
	WatchPaths []string
	Load       Loader
}

// Server wraps an HTTP server for the archive web viewer.
type Server struct {
	cfg        Config
	httpServer *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
	watcher    *archiveWatcher

	archive  atomic.Pointer[viewer.Archive]
	revision atomic.Uint64

	subscribersMu sync.Mutex
	subscribers   map[chan struct{}]struct{}
}

// NewServer creates a new web server serving arc.
func NewServer(cfg Config, arc *viewer.Archive) *Server {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8420"
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 30
	}
	if cfg.Viewer.Window.EstimateSize <= 0 {
		cfg.Viewer.Window.EstimateSize = 200
	}

	s := &Server{
		cfg:         cfg,
		subscribers: make(map[chan struct{}]struct{}),
	}
	s.archive.Store(arc)
	s.baseCtx, s.cancelBase = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", s.staticFileServer()))
	mux.Handle("/images/", http.StripPrefix("/images/", s.imageServer()))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/messages", s.handleMessages)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/window", s.handleWindow)
	mux.HandleFunc("/events/archive", s.handleArchiveEvents)
	mux.HandleFunc("/ws/view", s.handleViewWS)

	handler := withRecover(withRequestLog(mux))

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		BaseContext:       func(_ net.Listener) context.Context { return s.baseCtx },
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the configured HTTP handler (used by tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Archive returns the archive currently served.
func (s *Server) Archive() *viewer.Archive {
	return s.archive.Load()
}

// Revision counts archive swaps.
func (s *Server) Revision() uint64 {
	return s.revision.Load()
}

// SwapArchive atomically replaces the served archive and notifies event
// subscribers. Sessions pick it up on their next frame.
func (s *Server) SwapArchive(arc *viewer.Archive) {
	if arc == nil {
		return
	}
	s.archive.Store(arc)
	rev := s.revision.Add(1)
	webLog.Info("archive_swapped", slog.Int("messages", arc.Len()), slog.Uint64("revision", rev))
	s.notifyArchiveChanged()
}

// Start starts the HTTP server and blocks until shutdown or error.
// Returns nil on graceful shutdown.
func (s *Server) Start() error {
	if s.cfg.Watch {
		if w, err := newArchiveWatcher(s.cfg.WatchPaths, s.reload); err != nil {
			webLog.Warn("archive_watcher_disabled", slog.String("error", err.Error()))
		} else {
			s.watcher = w
			go w.Run(s.baseCtx)
		}
	}

	err := s.httpServer.ListenAndServe()
	s.stopWatcher()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) reload() {
	if s.cfg.Load == nil {
		return
	}
	arc, err := s.cfg.Load(s.baseCtx)
	if err != nil {
		webLog.Warn("archive_reload_failed", slog.String("error", err.Error()))
		return
	}
	s.SwapArchive(arc)
}

func (s *Server) stopWatcher() {
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelBase != nil {
		// Signal long-lived handlers (SSE/WS) to stop promptly.
		s.cancelBase()
	}
	s.stopWatcher()

	err := s.httpServer.Shutdown(ctx)
	if err == nil {
		return nil
	}

	// Long-lived connections may still block graceful shutdown. Force close
	// as a fallback so Ctrl+C exits promptly.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if closeErr := s.httpServer.Close(); closeErr != nil {
			return fmt.Errorf("graceful shutdown timed out and force close failed: %w", closeErr)
		}
		return nil
	}

	return err
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	arc := s.Archive()
	resp := map[string]any{
		"ok":       true,
		"messages": arc.Len(),
		"revision": s.Revision(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	}
	if arc.Err != nil {
		resp["loadError"] = arc.Err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				webLog.Error("panic",
					slog.String("recover", fmt.Sprintf("%v", rec)),
					slog.String("path", r.URL.Path))
				writeAPIError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

var httpLog = logging.ForComponent(logging.CompHTTP)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Aggregate(logging.CompHTTP, "request",
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status))
		if rec.status >= http.StatusInternalServerError {
			httpLog.Warn("request_failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()))
		}
	})
}

func (s *Server) String() string {
	arc := s.Archive()
	return fmt.Sprintf("web-server(addr=%s, messages=%d, watch=%t)", s.cfg.ListenAddr, arc.Len(), s.cfg.Watch)
}

func (s *Server) subscribeArchiveChanges() chan struct{} {
	ch := make(chan struct{}, 1)
	s.subscribersMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subscribersMu.Unlock()
	return ch
}

func (s *Server) unsubscribeArchiveChanges(ch chan struct{}) {
	if ch == nil {
		return
	}
	s.subscribersMu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subscribersMu.Unlock()
}

func (s *Server) notifyArchiveChanged() {
	s.subscribersMu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.subscribersMu.Unlock()
}
