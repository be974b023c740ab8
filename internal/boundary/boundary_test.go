package boundary

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
)

const fixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"GEOID": "4310", "NAMELSAD": "Lummi Reservation", "INTPTLAT": "+48.7985", "INTPTLON": "-122.6530"},
      "geometry": {"type": "Polygon", "coordinates": [[[-122.75, 48.73], [-122.55, 48.73], [-122.55, 48.86], [-122.75, 48.86], [-122.75, 48.73]]]}
    },
    {
      "type": "Feature",
      "properties": {"id": "ca-0001", "name": "Kitsumkalum <b>160</b>", "jurisdiction": "CA", "centroid": [-128.7, 54.52]},
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[-128.8, 54.5], [-128.6, 54.5], [-128.6, 54.55], [-128.8, 54.55], [-128.8, 54.5]]]]}
    },
    {
      "type": "Feature",
      "properties": {"id": 77, "name": "Computed Point"},
      "geometry": {"type": "Polygon", "coordinates": [[[-101, 35], [-99, 35], [-99, 37], [-101, 37], [-101, 35]]]}
    },
    {
      "type": "Feature",
      "properties": {"id": "broken", "centroid": [500, 0]},
      "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [1, 1]]]}
    },
    {
      "type": "Feature",
      "properties": {"name": "No Identifier"},
      "geometry": null
    },
    {
      "type": "Feature",
      "properties": {"GEOID": "4310", "NAMELSAD": "Duplicate"},
      "geometry": null
    }
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad(t *testing.T) {
	got, err := Load(strings.NewReader(fixture), discardLogger())
	require.NoError(t, err)
	require.Len(t, got, 4)

	lummi := got[0]
	assert.Equal(t, "4310", lummi.ID)
	assert.Equal(t, "Lummi Reservation", lummi.Name)
	assert.Equal(t, domain.JurisdictionUS, lummi.Jurisdiction)
	require.True(t, lummi.HasPoint)
	assert.Equal(t, geo.Point{Lon: -122.653, Lat: 48.7985}, lummi.Point)
	require.NotNil(t, lummi.Geometry)

	kitsumkalum := got[1]
	assert.Equal(t, "Kitsumkalum 160", kitsumkalum.Name)
	assert.Equal(t, domain.JurisdictionCA, kitsumkalum.Jurisdiction)
	assert.Equal(t, geo.Point{Lon: -128.7, Lat: 54.52}, kitsumkalum.Point)
	assert.Equal(t, geo.TypeMultiPolygon, kitsumkalum.Geometry.Type)

	computed := got[2]
	assert.Equal(t, "77", computed.ID)
	assert.False(t, computed.HasPoint)

	broken := got[3]
	assert.Nil(t, broken.Geometry)
	assert.False(t, broken.HasPoint)
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(strings.NewReader(`{"features":`), discardLogger())
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundaries.geojson")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))

	got, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.geojson"), nil)
	assert.Error(t, err)
}
