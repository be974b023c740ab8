package http

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/match"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resilience"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

// SnapshotProvider exposes the poller's latest results. *pipeline.Pipeline
// satisfies it.
type SnapshotProvider interface {
	sharedobs.ReadinessChecker
	Snapshot() *domain.Snapshot
	Matcher() *match.Matcher
}

// BreakerReporter reports the state of one circuit breaker.
type BreakerReporter interface {
	Status() resilience.BreakerStatus
}

// Server exposes health, metrics, and the alert query API.
type Server struct {
	httpServer *http.Server
	provider   SnapshotProvider
	breakers   []BreakerReporter
	logger     *slog.Logger
}

// NewServer creates an HTTP server with health, metrics, and /api routes.
func NewServer(addr string, provider SnapshotProvider, breakers []BreakerReporter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		provider: provider,
		breakers: breakers,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(provider))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/matches", s.handleMatches)
	mux.HandleFunc("GET /api/boundaries/{id}/alerts", s.handleBoundaryAlerts)
	mux.HandleFunc("GET /api/breakers", s.handleBreakers)

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

type alertsResponse struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Count       int                   `json:"count"`
	Alerts      []domain.Alert        `json:"alerts"`
	Sources     []domain.SourceStatus `json:"sources"`
}

type matchEntry struct {
	BoundaryID string         `json:"boundary_id"`
	Level      severity.Level `json:"level"`
}

type matchesResponse struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Matches     []matchEntry `json:"matches"`
}

type boundaryAlertsResponse struct {
	BoundaryID string         `json:"boundary_id"`
	Alerts     []domain.Alert `json:"alerts"`
}

// handleAlerts lists active alerts, most severe first. Optional filters:
// agency=nws|eccc and min_level=0..4.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	minLevel := severity.Min
	if v := r.URL.Query().Get("min_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !severity.Level(n).Valid() {
			writeError(w, http.StatusBadRequest, "min_level must be an integer between 0 and 4")
			return
		}
		minLevel = severity.Level(n)
	}
	agency := domain.Agency(r.URL.Query().Get("agency"))

	alerts := make([]domain.Alert, 0, len(snap.Alerts))
	for _, a := range snap.Alerts {
		if agency != "" && a.Agency != agency {
			continue
		}
		if severity.Compare(a.Level, minLevel) < 0 {
			continue
		}
		alerts = append(alerts, a)
	}

	writeJSON(w, http.StatusOK, alertsResponse{
		GeneratedAt: snap.GeneratedAt,
		Count:       len(alerts),
		Alerts:      alerts,
		Sources:     snap.Sources,
	})
}

// handleMatches lists matched boundaries, most severe first, ties by id.
func (s *Server) handleMatches(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	entries := make([]matchEntry, 0, len(snap.Matches))
	for id, lvl := range snap.Matches {
		entries = append(entries, matchEntry{BoundaryID: id, Level: lvl})
	}
	sortMatches(entries)
	writeJSON(w, http.StatusOK, matchesResponse{GeneratedAt: snap.GeneratedAt, Matches: entries})
}

func (s *Server) handleBoundaryAlerts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.provider.Matcher().Has(id) {
		writeError(w, http.StatusNotFound, "unknown boundary")
		return
	}
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	alerts, _ := s.provider.Matcher().AlertsFor(id, snap.Alerts)
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, boundaryAlertsResponse{BoundaryID: id, Alerts: alerts})
}

// handleBreakers reports every upstream breaker. It answers before the first
// snapshot, when breaker state explains why no poll has succeeded.
func (s *Server) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	out := make([]resilience.BreakerStatus, 0, len(s.breakers))
	for _, b := range s.breakers {
		out = append(out, b.Status())
	}
	writeJSON(w, http.StatusOK, out)
}

func sortMatches(entries []matchEntry) {
	slices.SortFunc(entries, func(a, b matchEntry) int {
		if c := severity.Compare(b.Level, a.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.BoundaryID, b.BoundaryID)
	})
}

// snapshot writes a 503 and returns false before the first poll completes.
func (s *Server) snapshot(w http.ResponseWriter) (*domain.Snapshot, bool) {
	snap := s.provider.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
		return nil, false
	}
	return snap, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
