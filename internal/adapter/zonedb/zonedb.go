// Package zonedb stores forecast and public zone geometry in SQLite so the
// resolver can expand zone-only alerts into polygons.
package zonedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/resolver"
)

const schema = `
	CREATE TABLE IF NOT EXISTS zones (
		id TEXT PRIMARY KEY,
		name TEXT,
		geometry TEXT NOT NULL,
		bbox_min_lat REAL NOT NULL,
		bbox_max_lat REAL NOT NULL,
		bbox_min_lon REAL NOT NULL,
		bbox_max_lon REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_zones_bbox ON zones(
		bbox_min_lat, bbox_max_lat, bbox_min_lon, bbox_max_lon
	);
`

// Zone is one row of the zone table.
type Zone struct {
	ID       string
	Name     string
	Geometry geo.Geometry
}

// Store is a SQLite-backed zone table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening zone database: %w", err)
	}
	s := &Store{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the zones table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating zones table: %w", err)
	}
	return nil
}

// Put inserts or replaces a zone. Invalid geometry is rejected.
func (s *Store) Put(ctx context.Context, z Zone) error {
	if z.ID == "" {
		return errors.New("zone has no id")
	}
	if err := z.Geometry.Validate(); err != nil {
		return fmt.Errorf("zone %s: %w", z.ID, err)
	}
	data, err := json.Marshal(z.Geometry)
	if err != nil {
		return fmt.Errorf("zone %s: marshal geometry: %w", z.ID, err)
	}
	b := z.Geometry.Bounds()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO zones (
			id, name, geometry,
			bbox_min_lat, bbox_max_lat, bbox_min_lon, bbox_max_lon
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, z.ID, z.Name, string(data), b.Y.Lo, b.Y.Hi, b.X.Lo, b.X.Hi)
	if err != nil {
		return fmt.Errorf("inserting zone %s: %w", z.ID, err)
	}
	return nil
}

// Count returns the number of stored zones.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM zones").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting zones: %w", err)
	}
	return n, nil
}

// LoadAll reads every zone into memory. Rows whose geometry no longer parses
// are skipped with a warning.
func (s *Store) LoadAll(ctx context.Context, logger *slog.Logger) (resolver.MapZones, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, geometry FROM zones")
	if err != nil {
		return nil, fmt.Errorf("querying zones: %w", err)
	}
	defer rows.Close()

	out := make(resolver.MapZones)
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning zone: %w", err)
		}
		g, err := geo.ParseGeoJSON([]byte(raw))
		if err != nil || g == nil {
			logger.Warn("skipping zone with invalid geometry", "zone_id", id, "error", err)
			continue
		}
		out[id] = *g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading zones: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
