// Package geo holds the planar geometry primitives used for alert matching:
// GeoJSON-compatible polygons, axis-aligned bounding boxes, ray-casting
// containment and representative points.
//
// Coordinates follow GeoJSON order, [lon, lat], in WGS-84 degrees. All math is
// planar on those degrees; there is no projection handling and polygons that
// span the antimeridian are not supported.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGeometry is wrapped by every geometry validation failure.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Geometry types supported by the matcher.
const (
	TypePolygon      = "Polygon"
	TypeMultiPolygon = "MultiPolygon"
)

// Point is a [lon, lat] coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// Valid reports whether the point is finite and within WGS-84 bounds.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || math.IsInf(p.Lon, 0) || math.IsInf(p.Lat, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Ring is a closed sequence of points. The first ring of a Polygon is its
// outer boundary; any later rings are holes.
type Ring []Point

// Closed reports whether the first and last points are equal.
func (r Ring) Closed() bool {
	return len(r) > 0 && r[0] == r[len(r)-1]
}

// Validate checks the ring invariant: closed, at least four points, all valid.
func (r Ring) Validate() error {
	if len(r) < 4 {
		return fmt.Errorf("%w: ring has %d points, need at least 4", ErrInvalidGeometry, len(r))
	}
	if !r.Closed() {
		return fmt.Errorf("%w: ring is not closed", ErrInvalidGeometry)
	}
	for i, p := range r {
		if !p.Valid() {
			return fmt.Errorf("%w: point %d out of range (%g, %g)", ErrInvalidGeometry, i, p.Lon, p.Lat)
		}
	}
	return nil
}

// CloseRing returns the ring with its first point appended when it is not
// already closed. The input slice is not modified.
func CloseRing(r Ring) Ring {
	if len(r) == 0 || r.Closed() {
		return r
	}
	out := make(Ring, len(r), len(r)+1)
	copy(out, r)
	return append(out, r[0])
}

// Polygon is an outer ring followed by optional hole rings.
type Polygon []Ring

// Outer returns the outer ring, or nil for an empty polygon.
func (p Polygon) Outer() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Geometry is a Polygon or MultiPolygon. A Polygon geometry always holds
// exactly one entry in Polygons.
type Geometry struct {
	Type     string
	Polygons []Polygon
}

// NewPolygon wraps rings as a Polygon geometry.
func NewPolygon(rings ...Ring) Geometry {
	return Geometry{Type: TypePolygon, Polygons: []Polygon{rings}}
}

// FromPolygons builds a Polygon geometry for a single polygon and a
// MultiPolygon for several.
func FromPolygons(polys []Polygon) Geometry {
	if len(polys) == 1 {
		return Geometry{Type: TypePolygon, Polygons: polys}
	}
	return Geometry{Type: TypeMultiPolygon, Polygons: polys}
}

// Union concatenates the polygons of every geometry. Overlaps are not
// dissolved; a single resulting polygon is returned as a plain Polygon.
func Union(geoms ...Geometry) Geometry {
	var polys []Polygon
	for _, g := range geoms {
		polys = append(polys, g.Polygons...)
	}
	return FromPolygons(polys)
}

// Box returns the rectangle polygon spanning the given extent.
func Box(minLon, minLat, maxLon, maxLat float64) Geometry {
	return NewPolygon(Ring{
		{Lon: minLon, Lat: minLat},
		{Lon: maxLon, Lat: minLat},
		{Lon: maxLon, Lat: maxLat},
		{Lon: minLon, Lat: maxLat},
		{Lon: minLon, Lat: minLat},
	})
}

// Validate checks the type and every ring.
func (g Geometry) Validate() error {
	switch g.Type {
	case TypePolygon:
		if len(g.Polygons) != 1 {
			return fmt.Errorf("%w: polygon holds %d parts", ErrInvalidGeometry, len(g.Polygons))
		}
	case TypeMultiPolygon:
		if len(g.Polygons) == 0 {
			return fmt.Errorf("%w: empty multipolygon", ErrInvalidGeometry)
		}
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidGeometry, g.Type)
	}
	for i, poly := range g.Polygons {
		if len(poly) == 0 {
			return fmt.Errorf("%w: polygon %d has no rings", ErrInvalidGeometry, i)
		}
		for _, ring := range poly {
			if err := ring.Validate(); err != nil {
				return fmt.Errorf("polygon %d: %w", i, err)
			}
		}
	}
	return nil
}

// geoJSON is the wire form of a geometry object.
type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// MarshalJSON encodes the geometry as a GeoJSON geometry object.
func (g Geometry) MarshalJSON() ([]byte, error) {
	var coords any
	switch g.Type {
	case TypePolygon:
		if len(g.Polygons) == 0 {
			return nil, fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
		}
		coords = polygonCoords(g.Polygons[0])
	case TypeMultiPolygon:
		multi := make([][][][2]float64, len(g.Polygons))
		for i, p := range g.Polygons {
			multi[i] = polygonCoords(p)
		}
		coords = multi
	default:
		return nil, fmt.Errorf("%w: unsupported type %q", ErrInvalidGeometry, g.Type)
	}
	raw, err := json.Marshal(coords)
	if err != nil {
		return nil, err
	}
	return json.Marshal(geoJSON{Type: g.Type, Coordinates: raw})
}

// UnmarshalJSON decodes a GeoJSON Polygon or MultiPolygon. Structural problems
// are reported; ring invariants are checked separately by Validate.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var wire geoJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case TypePolygon:
		var coords [][][]float64
		if err := json.Unmarshal(wire.Coordinates, &coords); err != nil {
			return fmt.Errorf("%w: polygon coordinates: %v", ErrInvalidGeometry, err)
		}
		poly, err := toPolygon(coords)
		if err != nil {
			return err
		}
		*g = Geometry{Type: TypePolygon, Polygons: []Polygon{poly}}
	case TypeMultiPolygon:
		var coords [][][][]float64
		if err := json.Unmarshal(wire.Coordinates, &coords); err != nil {
			return fmt.Errorf("%w: multipolygon coordinates: %v", ErrInvalidGeometry, err)
		}
		polys := make([]Polygon, 0, len(coords))
		for _, c := range coords {
			poly, err := toPolygon(c)
			if err != nil {
				return err
			}
			polys = append(polys, poly)
		}
		*g = Geometry{Type: TypeMultiPolygon, Polygons: polys}
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidGeometry, wire.Type)
	}
	return nil
}

// ParseGeoJSON decodes and validates a GeoJSON geometry. A JSON null yields
// (nil, nil) so callers can treat absent geometry uniformly.
func ParseGeoJSON(data []byte) (*Geometry, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var g Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

func toPolygon(coords [][][]float64) (Polygon, error) {
	poly := make(Polygon, 0, len(coords))
	for _, ringCoords := range coords {
		ring := make(Ring, 0, len(ringCoords))
		for _, c := range ringCoords {
			if len(c) < 2 {
				return nil, fmt.Errorf("%w: position has %d values", ErrInvalidGeometry, len(c))
			}
			ring = append(ring, Point{Lon: c[0], Lat: c[1]})
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

func polygonCoords(p Polygon) [][][2]float64 {
	out := make([][][2]float64, len(p))
	for i, ring := range p {
		pts := make([][2]float64, len(ring))
		for j, pt := range ring {
			pts[j] = [2]float64{pt.Lon, pt.Lat}
		}
		out[i] = pts
	}
	return out
}
