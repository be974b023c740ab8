// Package boundary loads tribal land boundaries from a GeoJSON
// FeatureCollection, such as the Census TIGER AIANNH layer converted to GeoJSON.
package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

type feature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// LoadFile reads boundaries from a GeoJSON file.
func LoadFile(path string, logger *slog.Logger) ([]domain.Boundary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open boundaries: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load decodes a FeatureCollection. Features without an id are dropped with a
// warning. Invalid geometry is discarded; the matcher then skips the boundary.
func Load(r io.Reader, logger *slog.Logger) ([]domain.Boundary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	fc := safeparse.DecodeJSON[featureCollection](data)
	if fc == nil {
		return nil, errors.New("boundaries: malformed feature collection")
	}

	batch := safeparse.ProcessBatch(fc.Features, func(raw json.RawMessage) (domain.Boundary, error) {
		return parseFeature(raw, logger)
	}, logger, "source", "boundaries")

	seen := make(map[string]bool, len(batch.Items))
	out := make([]domain.Boundary, 0, len(batch.Items))
	for _, b := range batch.Items {
		if seen[b.ID] {
			logger.Warn("duplicate boundary id, keeping first", "boundary_id", b.ID)
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	return out, nil
}

func parseFeature(raw json.RawMessage, logger *slog.Logger) (domain.Boundary, error) {
	var f feature
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Boundary{}, fmt.Errorf("decode feature: %w", err)
	}
	props := any(f.Properties)

	id := firstString(props, "id", "GEOID", "AIANNHCE")
	if id == "" {
		return domain.Boundary{}, errors.New("boundary has no id")
	}

	b := domain.Boundary{
		ID:           id,
		Name:         safeparse.SanitizeText(firstString(props, "name", "NAMELSAD", "NAME")),
		Jurisdiction: jurisdiction(safeparse.GetString(props, "jurisdiction", "")),
	}

	g, err := geo.ParseGeoJSON(f.Geometry)
	if err != nil {
		logger.Warn("discarding invalid boundary geometry", "boundary_id", id, "error", err)
	}
	b.Geometry = g

	if p, ok := suppliedPoint(props); ok {
		b.Point, b.HasPoint = p, true
	}
	return b, nil
}

func firstString(props any, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(safeparse.GetString(props, k, "")); v != "" {
			return v
		}
	}
	return ""
}

// suppliedPoint reads a "centroid": [lon, lat] property or the TIGER
// INTPTLAT/INTPTLON internal point.
func suppliedPoint(props any) (geo.Point, bool) {
	lon, okLon := safeparse.ParseLongitude(safeparse.Get(props, "centroid.0", nil))
	lat, okLat := safeparse.ParseLatitude(safeparse.Get(props, "centroid.1", nil))
	if okLon && okLat {
		return geo.Point{Lon: lon, Lat: lat}, true
	}
	lat, okLat = safeparse.ParseLatitude(safeparse.Get(props, "INTPTLAT", nil))
	lon, okLon = safeparse.ParseLongitude(safeparse.Get(props, "INTPTLON", nil))
	if okLon && okLat {
		return geo.Point{Lon: lon, Lat: lat}, true
	}
	return geo.Point{}, false
}

func jurisdiction(s string) domain.Jurisdiction {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CA", "CAN", "CANADA":
		return domain.JurisdictionCA
	case "US", "USA":
		return domain.JurisdictionUS
	default:
		return domain.JurisdictionUS
	}
}
