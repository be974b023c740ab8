package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/http"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/match"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resilience"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

type mockProvider struct {
	err     error
	snap    *domain.Snapshot
	matcher *match.Matcher
}

func (m *mockProvider) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockProvider) Snapshot() *domain.Snapshot            { return m.snap }
func (m *mockProvider) Matcher() *match.Matcher               { return m.matcher }

func box(minLon, minLat, maxLon, maxLat float64) *geo.Geometry {
	g := geo.Box(minLon, minLat, maxLon, maxLat)
	return &g
}

func testMatcher() *match.Matcher {
	return match.NewMatcher([]domain.Boundary{
		{ID: "lummi", Name: "Lummi", Geometry: box(-122.8, 48.7, -122.5, 48.9)},
		{ID: "navajo", Name: "Navajo Nation", Geometry: box(-111.5, 35.0, -108.9, 37.0)},
		{ID: "hopi", Name: "Hopi", Geometry: box(-111.0, 35.6, -110.0, 36.3)},
	})
}

func testSnapshot() *domain.Snapshot {
	alerts := []domain.Alert{
		{ID: "a1", Agency: domain.AgencyNWS, Event: "Winter Storm Warning", Level: severity.High, Geometry: box(-123, 48, -122, 49)},
		{ID: "a2", Agency: domain.AgencyNWS, Event: "Red Flag Warning", Level: severity.Moderate, Geometry: box(-112, 34, -108, 38)},
		{ID: "a3", Agency: domain.AgencyECCC, Event: "rainfall", Level: severity.Low, Geometry: box(-80, 44, -70, 47)},
	}
	return &domain.Snapshot{
		GeneratedAt: time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC),
		Alerts:      alerts,
		Sources:     []domain.SourceStatus{{Name: "nws", Agency: domain.AgencyNWS, OK: true, Alerts: 2}},
	}
}

func newTestServer(p *mockProvider, breakers ...httpadapter.BreakerReporter) *httpadapter.Server {
	if p.matcher == nil {
		p.matcher = testMatcher()
	}
	if p.snap != nil {
		p.snap.Matches = p.matcher.Match(p.snap.Alerts)
	}
	return httpadapter.NewServer(":0", p, breakers, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(&mockProvider{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(&mockProvider{snap: testSnapshot()}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(&mockProvider{err: fmt.Errorf("not ready yet")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&mockProvider{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIReturns503BeforeFirstSnapshot(t *testing.T) {
	srv := newTestServer(&mockProvider{})
	for _, path := range []string{"/api/alerts", "/api/matches", "/api/boundaries/lummi/alerts"} {
		t.Run(path, func(t *testing.T) {
			rec := get(t, srv, path)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		})
	}
}

func TestAlerts(t *testing.T) {
	srv := newTestServer(&mockProvider{snap: testSnapshot()})

	rec := get(t, srv, "/api/alerts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Count  int            `json:"count"`
		Alerts []domain.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, "a1", body.Alerts[0].ID)
	assert.Equal(t, severity.High, body.Alerts[0].Level)
}

func TestAlertsFilters(t *testing.T) {
	srv := newTestServer(&mockProvider{snap: testSnapshot()})

	cases := []struct {
		query string
		code  int
		count int
	}{
		{"?agency=eccc", http.StatusOK, 1},
		{"?min_level=2", http.StatusOK, 2},
		{"?agency=nws&min_level=3", http.StatusOK, 1},
		{"?min_level=9", http.StatusBadRequest, 0},
		{"?min_level=high", http.StatusBadRequest, 0},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			rec := get(t, srv, "/api/alerts"+tc.query)
			require.Equal(t, tc.code, rec.Code)
			if tc.code != http.StatusOK {
				return
			}
			var body struct {
				Count int `json:"count"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.count, body.Count)
		})
	}
}

func TestMatchesSortedBySeverity(t *testing.T) {
	srv := newTestServer(&mockProvider{snap: testSnapshot()})

	rec := get(t, srv, "/api/matches")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Matches []struct {
			BoundaryID string         `json:"boundary_id"`
			Level      severity.Level `json:"level"`
		} `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Matches, 3)
	assert.Equal(t, "lummi", body.Matches[0].BoundaryID)
	assert.Equal(t, severity.High, body.Matches[0].Level)
	assert.Equal(t, "hopi", body.Matches[1].BoundaryID)
	assert.Equal(t, "navajo", body.Matches[2].BoundaryID)
}

func TestBoundaryAlerts(t *testing.T) {
	srv := newTestServer(&mockProvider{snap: testSnapshot()})

	rec := get(t, srv, "/api/boundaries/navajo/alerts")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		BoundaryID string         `json:"boundary_id"`
		Alerts     []domain.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "navajo", body.BoundaryID)
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, "a2", body.Alerts[0].ID)
}

func TestBoundaryAlertsUnknownBoundary(t *testing.T) {
	srv := newTestServer(&mockProvider{snap: testSnapshot()})
	rec := get(t, srv, "/api/boundaries/nowhere/alerts")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBreakers(t *testing.T) {
	clk := clockwork.NewFakeClock()
	nws := resilience.NewBreaker(resilience.BreakerSettings{Name: "nws", FailureThreshold: 1, Cooldown: time.Minute, Clock: clk})
	eccc := resilience.NewBreaker(resilience.BreakerSettings{Name: "eccc", Clock: clk})

	err := nws.Execute(context.Background(), func(context.Context) error {
		return &resilience.TransientError{Op: "get", StatusCode: http.StatusBadGateway}
	})
	require.Error(t, err)

	// No snapshot yet: breaker status is still served.
	srv := newTestServer(&mockProvider{}, nws, eccc)
	rec := get(t, srv, "/api/breakers")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []resilience.BreakerStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 2)
	assert.Equal(t, "nws", body[0].Name)
	assert.Equal(t, "open", body[0].State)
	assert.Equal(t, time.Minute, body[0].RetryAfter)
	assert.Equal(t, "closed", body[1].State)
}
