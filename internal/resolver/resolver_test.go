package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
)

func testZones() MapZones {
	return MapZones{
		"WAZ558": geo.Box(-122.8, 48.7, -122.5, 48.9),
		"WAZ503": geo.Box(-122.5, 48.7, -122.2, 48.9),
		"BROKEN": {Type: geo.TypePolygon, Polygons: []geo.Polygon{{{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}}}},
	}
}

func TestResolveFeedGeometryWins(t *testing.T) {
	g := geo.Box(-100, 40, -99, 41)
	r := New(testZones())

	got, src := r.Resolve(context.Background(), domain.Alert{Geometry: &g, ZoneIDs: []string{"WAZ558"}})
	assert.Equal(t, domain.GeometryFromFeed, src)
	assert.Same(t, &g, got)
}

func TestResolveInvalidFeedGeometryFallsThrough(t *testing.T) {
	bad := geo.NewPolygon(geo.Ring{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 0}, {Lon: 1, Lat: 1}})
	r := New(testZones())

	got, src := r.Resolve(context.Background(), domain.Alert{Geometry: &bad, ZoneIDs: []string{"WAZ558"}})
	require.NotNil(t, got)
	assert.Equal(t, domain.GeometryFromZones, src)
	assert.Equal(t, geo.TypePolygon, got.Type)
}

func TestResolveZones(t *testing.T) {
	r := New(testZones())

	t.Run("single zone yields polygon", func(t *testing.T) {
		got, src := r.Resolve(context.Background(), domain.Alert{ZoneIDs: []string{"WAZ558", "UNKNOWN"}})
		require.NotNil(t, got)
		assert.Equal(t, domain.GeometryFromZones, src)
		assert.Equal(t, geo.TypePolygon, got.Type)
	})

	t.Run("several zones yield multipolygon", func(t *testing.T) {
		got, src := r.Resolve(context.Background(), domain.Alert{ZoneIDs: []string{"WAZ558", "WAZ503"}})
		require.NotNil(t, got)
		assert.Equal(t, domain.GeometryFromZones, src)
		assert.Equal(t, geo.TypeMultiPolygon, got.Type)
		assert.Len(t, got.Polygons, 2)
	})

	t.Run("invalid zone geometry ignored", func(t *testing.T) {
		got, src := r.Resolve(context.Background(), domain.Alert{ZoneIDs: []string{"BROKEN"}})
		assert.Nil(t, got)
		assert.Equal(t, domain.GeometryNone, src)
	})

	t.Run("unresolved zones fall back to area description", func(t *testing.T) {
		_, src := r.Resolve(context.Background(), domain.Alert{
			Jurisdiction: domain.JurisdictionUS,
			ZoneIDs:      []string{"AZZ999"},
			AreaDesc:     "Northeast Plateau, Arizona",
		})
		assert.Equal(t, domain.GeometryFromRegion, src)
	})
}

func TestResolveRegions(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name     string
		alert    domain.Alert
		wantSrc  domain.GeometrySource
		wantBBox [4]float64
	}{
		{
			name:     "french accented province",
			alert:    domain.Alert{Jurisdiction: domain.JurisdictionCA, AreaDesc: "Région de Québec"},
			wantSrc:  domain.GeometryFromRegion,
			wantBBox: [4]float64{-79.8, 45.0, -57.1, 62.6},
		},
		{
			name:     "first match wins",
			alert:    domain.Alert{Jurisdiction: domain.JurisdictionCA, AreaDesc: "Kenora - Ontario and Manitoba border"},
			wantSrc:  domain.GeometryFromRegion,
			wantBBox: [4]float64{-95.2, 41.7, -74.3, 56.9},
		},
		{
			name:     "state abbreviation",
			alert:    domain.Alert{Jurisdiction: domain.JurisdictionUS, AreaDesc: "Glacier County, MT"},
			wantSrc:  domain.GeometryFromRegion,
			wantBBox: [4]float64{-116.05, 44.36, -104.04, 49.0},
		},
		{
			name:     "other jurisdiction skipped",
			alert:    domain.Alert{Jurisdiction: domain.JurisdictionUS, AreaDesc: "Ontario County"},
			wantSrc:  domain.GeometryFromDefault,
			wantBBox: [4]float64{-124.85, 24.40, -66.88, 49.38},
		},
		{
			name:     "unknown area uses default box",
			alert:    domain.Alert{Jurisdiction: domain.JurisdictionCA, AreaDesc: "somewhere remote"},
			wantSrc:  domain.GeometryFromDefault,
			wantBBox: [4]float64{-141.0, 41.68, -52.62, 83.11},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src := r.Resolve(context.Background(), tt.alert)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantSrc, src)
			b := got.Bounds()
			assert.Equal(t, tt.wantBBox, [4]float64{b.X.Lo, b.Y.Lo, b.X.Hi, b.Y.Hi})
		})
	}
}

func TestResolveNothingToGoOn(t *testing.T) {
	r := New(testZones())

	got, src := r.Resolve(context.Background(), domain.Alert{Jurisdiction: domain.JurisdictionUS})
	assert.Nil(t, got)
	assert.Equal(t, domain.GeometryNone, src)

	got, src = r.Resolve(context.Background(), domain.Alert{AreaDesc: "somewhere"})
	assert.Nil(t, got)
	assert.Equal(t, domain.GeometryNone, src)
}

func TestCustomRegionsEvaluatedInOrder(t *testing.T) {
	first := Region{Name: "first", Match: containsAny("coast"), Box: geo.Box(0, 0, 1, 1)}
	second := Region{Name: "second", Match: containsAny("coast"), Box: geo.Box(5, 5, 6, 6)}
	r := New(nil, WithRegions([]Region{first, second}), WithDefaults(nil))

	got, src := r.Resolve(context.Background(), domain.Alert{AreaDesc: "North Coast"})
	require.NotNil(t, got)
	assert.Equal(t, domain.GeometryFromRegion, src)
	assert.Equal(t, 1.0, got.Bounds().X.Hi)
}
