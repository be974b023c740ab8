// Command zoneimport loads an NWS zone shapefile into the SQLite zone table
// used to expand zone-only alerts into polygons.
//
// Usage:
//
//	go run ./cmd/zoneimport -shp data/z_18mr25.shp -db data/zones.db
//
// Public forecast zone files carry STATE and ZONE columns and are keyed as
// STATE + "Z" + ZONE (for example WAZ503). Other layers, such as county or
// marine zones, name their id column with -id-field.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/adapter/zonedb"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
)

func main() {
	shpPath := flag.String("shp", "", "path to the zone shapefile (.shp)")
	dbPath := flag.String("db", "data/zones.db", "path to the SQLite zone database")
	idField := flag.String("id-field", "", "attribute holding the zone id; default STATE+\"Z\"+ZONE")
	nameField := flag.String("name-field", "NAME", "attribute holding the zone name")
	flag.Parse()

	if *shpPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := zonedb.Open(*dbPath)
	if err != nil {
		logger.Error("failed to open zone database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	imported, skipped, err := importShapefile(context.Background(), *shpPath, store, *idField, *nameField, logger)
	if err != nil {
		logger.Error("zone import failed", "error", err)
		os.Exit(1)
	}
	logger.Info("zone import complete", "imported", imported, "skipped", skipped, "db", *dbPath)
}

func importShapefile(ctx context.Context, path string, store *zonedb.Store, idField, nameField string, logger *slog.Logger) (imported, skipped int, err error) {
	shape, err := shp.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening shapefile: %w", err)
	}
	defer shape.Close()

	fields := make(map[string]int)
	for i, f := range shape.Fields() {
		fields[strings.ToUpper(strings.Trim(f.String(), " \x00"))] = i
	}
	zoneID, err := idReader(fields, idField)
	if err != nil {
		return 0, 0, err
	}
	nameIdx, hasName := fields[strings.ToUpper(nameField)]

	for shape.Next() {
		n, s := shape.Shape()
		attr := func(i int) string { return strings.Trim(shape.ReadAttribute(n, i), " \x00") }

		id := zoneID(attr)
		polygon, ok := s.(*shp.Polygon)
		if !ok || id == "" {
			logger.Warn("skipping record", "row", n, "zone_id", id, "polygon", ok)
			skipped++
			continue
		}

		name := ""
		if hasName {
			name = attr(nameIdx)
		}
		z := zonedb.Zone{ID: id, Name: name, Geometry: toGeometry(polygon)}
		if err := store.Put(ctx, z); err != nil {
			logger.Warn("skipping zone", "zone_id", id, "error", err)
			skipped++
			continue
		}
		imported++
		if imported%500 == 0 {
			logger.Info("zones imported", "count", imported)
		}
	}
	if err := shape.Err(); err != nil {
		return imported, skipped, fmt.Errorf("reading shapefile: %w", err)
	}
	return imported, skipped, nil
}

// idReader returns a function building the zone id from a record's attributes.
func idReader(fields map[string]int, idField string) (func(attr func(int) string) string, error) {
	if idField != "" {
		i, ok := fields[strings.ToUpper(idField)]
		if !ok {
			return nil, fmt.Errorf("shapefile has no %q attribute", idField)
		}
		return func(attr func(int) string) string { return strings.ToUpper(attr(i)) }, nil
	}
	state, okState := fields["STATE"]
	zone, okZone := fields["ZONE"]
	if !okState || !okZone {
		return nil, errors.New("shapefile has no STATE and ZONE attributes; set -id-field")
	}
	return func(attr func(int) string) string {
		st, zn := strings.ToUpper(attr(state)), attr(zone)
		if st == "" || zn == "" {
			return ""
		}
		return st + "Z" + zn
	}, nil
}

// toGeometry converts shapefile parts into polygons. Clockwise parts start a
// new polygon; counter-clockwise parts are holes of the preceding one.
func toGeometry(p *shp.Polygon) geo.Geometry {
	var polys []geo.Polygon
	for i := range p.Parts {
		start := int(p.Parts[i])
		end := len(p.Points)
		if i+1 < len(p.Parts) {
			end = int(p.Parts[i+1])
		}
		ring := make(geo.Ring, 0, end-start+1)
		for _, pt := range p.Points[start:end] {
			ring = append(ring, geo.Point{Lon: pt.X, Lat: pt.Y})
		}
		ring = geo.CloseRing(ring)

		if signedArea(ring) < 0 || len(polys) == 0 {
			polys = append(polys, geo.Polygon{ring})
			continue
		}
		last := len(polys) - 1
		polys[last] = append(polys[last], ring)
	}
	return geo.FromPolygons(polys)
}

// signedArea is positive for counter-clockwise rings.
func signedArea(r geo.Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i].Lon*r[i+1].Lat - r[i+1].Lon*r[i].Lat
	}
	return sum / 2
}
