// Package http exposes the service's read-only HTTP surface: health and
// readiness probes, Prometheus metrics, and JSON views over the cache and
// the earthquake cluster window.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/misua/quake-monitor-web/internal/cache"
	"github.com/misua/quake-monitor-web/internal/cluster"
	"github.com/misua/quake-monitor-web/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the monitoring API over HTTP. All endpoints read from the
// cache and window snapshots; no request ever triggers an upstream fetch.
type Server struct {
	httpServer *http.Server
	store      *cache.Store
	window     *cluster.Window
	logger     *slog.Logger
}

// NewServer creates the HTTP server and mounts all routes.
func NewServer(addr string, store *cache.Store, window *cluster.Window, ready ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		store:  store,
		window: window,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Get("/latest/{source}", s.handleLatest)
		r.Get("/clusters", s.handleClusters)
		r.Get("/earthquakes/latest", s.handleLatestQuakes)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleSources lists every registered source with its freshness state but
// without record payloads.
func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	entries := s.store.Snapshot()
	out := make([]sourceStatus, len(entries))
	for i, e := range entries {
		out[i] = sourceStatus{
			SourceID:       e.SourceID,
			Kind:           e.Kind,
			Stale:          e.Stale,
			LastFetchedAt:  e.LastFetchedAt,
			FailedAttempts: e.FailedAttempts,
			RecordCount:    len(e.Records),
		}
		if e.LastError != "" {
			out[i].LastError = e.LastError
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source")
	entry, ok := s.store.Get(sourceID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown source: " + sourceID})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleClusters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.window.Top())
}

// handleLatestQuakes returns the seismic records from every earthquake-kind
// source, merged and sorted by observation time, newest first.
func (s *Server) handleLatestQuakes(w http.ResponseWriter, _ *http.Request) {
	var quakes []domain.Record
	for _, e := range s.store.Snapshot() {
		if e.Kind != domain.KindEarthquake {
			continue
		}
		quakes = append(quakes, e.Records...)
	}
	sortRecordsNewestFirst(quakes)
	writeJSON(w, http.StatusOK, quakes)
}

func sortRecordsNewestFirst(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ObservedAt.After(records[j].ObservedAt)
	})
}

type sourceStatus struct {
	SourceID       string      `json:"source_id"`
	Kind           domain.Kind `json:"kind"`
	Stale          bool        `json:"stale"`
	LastFetchedAt  time.Time   `json:"last_fetched_at"`
	FailedAttempts int         `json:"failed_attempts"`
	RecordCount    int         `json:"record_count"`
	LastError      string      `json:"last_error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
