package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

func alertWith(id string, level severity.Level, g geo.Geometry) domain.Alert {
	return domain.Alert{ID: id, Level: level, Geometry: &g}
}

func boundaryAt(id string, lon, lat float64) domain.Boundary {
	g := geo.Box(lon-0.05, lat-0.05, lon+0.05, lat+0.05)
	return domain.Boundary{ID: id, Geometry: &g, Point: geo.Point{Lon: lon, Lat: lat}, HasPoint: true}
}

func TestMatchEmptyInputs(t *testing.T) {
	boundaries := []domain.Boundary{boundaryAt("T", -122.65, 48.80)}
	alerts := []domain.Alert{alertWith("A", severity.High, geo.Box(-123, 48, -122, 49))}

	assert.Empty(t, Match(nil, boundaries))
	assert.Empty(t, Match(alerts, nil))
	assert.NotNil(t, Match(nil, nil))
}

func TestMatchKeepsMaximumSeverity(t *testing.T) {
	cover := geo.Box(-122.8, 48.7, -122.5, 48.9)
	alerts := []domain.Alert{
		alertWith("A", severity.High, cover),
		alertWith("B", severity.Critical, cover),
	}
	boundaries := []domain.Boundary{boundaryAt("T", -122.65, 48.80)}

	want := domain.MatchResult{"T": severity.Critical}
	if diff := cmp.Diff(want, Match(alerts, boundaries)); diff != "" {
		t.Errorf("Match() mismatch (-want +got):\n%s", diff)
	}

	reversed := []domain.Alert{alerts[1], alerts[0]}
	assert.Equal(t, want, Match(reversed, boundaries), "order must not matter")
}

func TestMatchMultipleBoundaries(t *testing.T) {
	alerts := []domain.Alert{
		alertWith("west", severity.Moderate, geo.Box(-125, 45, -120, 50)),
		alertWith("east", severity.Low, geo.Box(-100, 45, -95, 50)),
		alertWith("nowhere", severity.Critical, geo.Box(0, 0, 1, 1)),
	}
	boundaries := []domain.Boundary{
		boundaryAt("tulalip", -122.2, 48.06),
		boundaryAt("red-lake", -95.1, 47.9),
		boundaryAt("navajo", -109.5, 36.2),
	}

	got := Match(alerts, boundaries)
	assert.Equal(t, domain.MatchResult{"tulalip": severity.Moderate}, got)
}

func TestMatchSkipsUnusableBoundaries(t *testing.T) {
	alerts := []domain.Alert{alertWith("A", severity.High, geo.Box(-10, -10, 10, 10))}
	empty := geo.Geometry{Type: geo.TypePolygon}

	boundaries := []domain.Boundary{
		{ID: "no-geometry", Point: geo.Point{Lon: 0, Lat: 0}, HasPoint: true},
		{ID: "empty-geometry", Geometry: &empty},
		boundaryAt("ok", 1, 1),
	}

	m := NewMatcher(boundaries)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, domain.MatchResult{"ok": severity.High}, m.Match(alerts))
}

func TestMatchUsesCentroidWhenPointMissing(t *testing.T) {
	g := geo.Box(-101, 35, -99, 37)
	b := domain.Boundary{ID: "computed", Geometry: &g}

	inside := alertWith("A", severity.Moderate, geo.Box(-100.5, 35.5, -99.5, 36.5))
	assert.Equal(t, domain.MatchResult{"computed": severity.Moderate}, Match([]domain.Alert{inside}, []domain.Boundary{b}))

	// Invalid supplied points fall back to the centroid as well.
	b.Point, b.HasPoint = geo.Point{Lon: 500, Lat: 0}, true
	assert.Equal(t, domain.MatchResult{"computed": severity.Moderate}, Match([]domain.Alert{inside}, []domain.Boundary{b}))
}

func TestMatchBoundingBoxRejectionIsSound(t *testing.T) {
	far := alertWith("far", severity.Critical, geo.Box(10, 10, 20, 20))
	b := boundaryAt("T", -50, -50)

	assert.Empty(t, Match([]domain.Alert{far}, []domain.Boundary{b}))
}

func TestMatchIgnoresHoles(t *testing.T) {
	donut := geo.NewPolygon(
		geo.Ring{{Lon: 0, Lat: 0}, {Lon: 10, Lat: 0}, {Lon: 10, Lat: 10}, {Lon: 0, Lat: 10}, {Lon: 0, Lat: 0}},
		geo.Ring{{Lon: 4, Lat: 4}, {Lon: 6, Lat: 4}, {Lon: 6, Lat: 6}, {Lon: 4, Lat: 6}, {Lon: 4, Lat: 4}},
	)
	got := Match([]domain.Alert{alertWith("A", severity.Low, donut)}, []domain.Boundary{boundaryAt("hole", 5, 5)})
	assert.Equal(t, domain.MatchResult{"hole": severity.Low}, got)
}

func TestMatchMultiPolygonAnyPart(t *testing.T) {
	multi := geo.Union(geo.Box(0, 0, 1, 1), geo.Box(20, 20, 21, 21))
	got := Match([]domain.Alert{alertWith("A", severity.High, multi)}, []domain.Boundary{boundaryAt("B", 20.5, 20.5)})
	assert.Equal(t, domain.MatchResult{"B": severity.High}, got)
}

func TestMatchAlertsWithoutGeometryIgnored(t *testing.T) {
	alerts := []domain.Alert{{ID: "nogeo", Level: severity.Critical}}
	assert.Empty(t, Match(alerts, []domain.Boundary{boundaryAt("T", 0, 0)}))
}

func TestAlertsFor(t *testing.T) {
	cover := geo.Box(-123, 48, -122, 49)
	alerts := []domain.Alert{
		alertWith("first", severity.Low, cover),
		alertWith("elsewhere", severity.Critical, geo.Box(0, 0, 1, 1)),
		alertWith("second", severity.High, cover),
	}
	m := NewMatcher([]domain.Boundary{boundaryAt("T", -122.65, 48.80)})

	got, ok := m.AlertsFor("T", alerts)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "second", got[1].ID)

	_, ok = m.AlertsFor("missing", alerts)
	assert.False(t, ok)

	none, ok := m.AlertsFor("T", nil)
	assert.True(t, ok)
	assert.Empty(t, none)
}
