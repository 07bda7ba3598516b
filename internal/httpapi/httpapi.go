// Package httpapi serves the read-only status API: region snapshots, the
// event journal and the live websocket feed.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ironsheep/screenwatch/internal/change"
	"github.com/ironsheep/screenwatch/internal/engine"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// StateReader exposes region state. *engine.Engine satisfies it.
type StateReader interface {
	Snapshot(region string) (engine.Snapshot, error)
	Snapshots() []engine.Snapshot
}

// EventStore returns journaled events. *sink.Journal satisfies it.
type EventStore interface {
	Recent(ctx context.Context, region string, limit int) ([]change.Event, error)
}

// FrameCache reports how many decoded frames are held in memory.
// *capture.FileCapturer satisfies it.
type FrameCache interface {
	CachedFrames() int
}

// Server is the status API.
type Server struct {
	state  StateReader
	events EventStore
	frames FrameCache
	live   http.Handler
	logger *slog.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithEvents enables GET /events.
func WithEvents(store EventStore) Option {
	return func(s *Server) { s.events = store }
}

// WithFrameCache adds the cached frame count to GET /healthz.
func WithFrameCache(fc FrameCache) Option {
	return func(s *Server) { s.frames = fc }
}

// WithLive mounts h (normally a *sink.Hub) at GET /ws.
func WithLive(h http.Handler) Option {
	return func(s *Server) { s.live = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the router.
func New(state StateReader, opts ...Option) *Server {
	s := &Server{state: state, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/regions", s.handleRegions)
	r.Get("/regions/{id}", s.handleRegion)
	r.Get("/events", s.handleEvents)
	if s.live != nil {
		r.Get("/ws", s.live.ServeHTTP)
	}

	s.router = r
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.frames != nil {
		resp["cached_frames"] = s.frames.CachedFrames()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpapi: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi: shutdown: %w", err)
		}
		return nil
	}
}

// regionSummary is the /regions list entry.
type regionSummary struct {
	Region            string      `json:"region_id"`
	LastType          change.Type `json:"last_type,omitempty"`
	LastAccepted      time.Time   `json:"last_accepted,omitzero"`
	CooldownUntil     time.Time   `json:"cooldown_until,omitzero"`
	HistoryLen        int         `json:"history_len"`
	ConsecutiveErrors int         `json:"consecutive_errors"`
}

func (s *Server) handleRegions(w http.ResponseWriter, _ *http.Request) {
	snaps := s.state.Snapshots()
	out := make([]regionSummary, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, regionSummary{
			Region:            snap.Region,
			LastType:          snap.LastType,
			LastAccepted:      snap.LastAccepted,
			CooldownUntil:     snap.CooldownUntil,
			HistoryLen:        snap.HistoryLen(),
			ConsecutiveErrors: snap.ConsecutiveErrors,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.state.Snapshot(id)
	if errors.Is(err, engine.ErrUnknownRegion) {
		writeError(w, http.StatusNotFound, fmt.Errorf("region %q not found", id))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusNotFound, errors.New("event journal disabled"))
		return
	}
	limit := queryInt(r, "limit", defaultEventLimit)
	if limit <= 0 {
		limit = defaultEventLimit
	}
	limit = min(limit, maxEventLimit)

	evs, err := s.events.Recent(r.Context(), r.URL.Query().Get("region"), limit)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if evs == nil {
		evs = []change.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

// requestLogger logs one line per request with the chi request ID.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
					"remote", r.RemoteAddr,
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
