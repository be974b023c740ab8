package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

const boundariesJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"GEOID": "4310", "NAMELSAD": "Lummi Reservation", "INTPTLAT": "+48.8000", "INTPTLON": "-122.6500"},
      "geometry": {"type": "Polygon", "coordinates": [[[-122.75, 48.73], [-122.55, 48.73], [-122.55, 48.86], [-122.75, 48.86], [-122.75, 48.73]]]}
    }
  ]
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeBoundaries(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boundaries.geojson")
	require.NoError(t, os.WriteFile(path, []byte(boundariesJSON), 0o600))
	return path
}

func TestRunReplaysSavedFeed(t *testing.T) {
	var out bytes.Buffer
	code := run(context.Background(), options{
		nwsPath:        filepath.Join("..", "..", "internal", "feed", "nws", "testdata", "active.json"),
		boundariesPath: writeBoundaries(t),
		at:             "2025-01-15T12:00:00Z",
	}, &out, discardLogger())
	require.Equal(t, 0, code)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	require.Len(t, snap.Alerts, 3)
	// The tornado warning ranks first but has no usable geometry.
	assert.Equal(t, severity.Critical, snap.Alerts[0].Level)
	assert.Equal(t, domain.GeometryNone, snap.Alerts[0].GeometrySource)
	assert.Equal(t, "urn:oid:2.49.0.1.840.0.aaa.001.1", snap.Alerts[1].ID)
	assert.Equal(t, severity.High, snap.Matches["4310"])
	require.Len(t, snap.Sources, 1)
	assert.Equal(t, 2, snap.Sources[0].Failed)
}

func TestRunMissingFeedFails(t *testing.T) {
	code := run(context.Background(), options{
		nwsPath:        filepath.Join(t.TempDir(), "missing.json"),
		boundariesPath: writeBoundaries(t),
	}, io.Discard, discardLogger())
	assert.Equal(t, 1, code)
}

func TestRunBadEvaluationTime(t *testing.T) {
	code := run(context.Background(), options{
		nwsPath:        "unused.json",
		boundariesPath: writeBoundaries(t),
		at:             "yesterday",
	}, io.Discard, discardLogger())
	assert.Equal(t, 1, code)
}
