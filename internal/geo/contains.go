package geo

import (
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// Bounds returns the axis-aligned bounding box of every ring (X = lon, Y = lat).
// An empty geometry yields an empty rect, which intersects nothing.
func (g Geometry) Bounds() r2.Rect {
	rect := r2.EmptyRect()
	for _, poly := range g.Polygons {
		for _, ring := range poly {
			for _, p := range ring {
				rect = rect.AddPoint(r2.Point{X: p.Lon, Y: p.Lat})
			}
		}
	}
	return rect
}

// PointRect returns the degenerate rect holding only p.
func PointRect(p Point) r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: p.Lon, Hi: p.Lon},
		Y: r1.Interval{Lo: p.Lat, Hi: p.Lat},
	}
}

// ContainsPoint reports whether p falls inside the outer ring of any polygon.
// Holes are not subtracted.
func (g Geometry) ContainsPoint(p Point) bool {
	for _, poly := range g.Polygons {
		if RingContains(poly.Outer(), p) {
			return true
		}
	}
	return false
}

// RingContains is an even-odd ray cast from p towards +lon. Points exactly on
// an edge may land on either side.
func RingContains(r Ring, p Point) bool {
	if len(r) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(r)-1; i < len(r); j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lon
			if p.Lon < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Centroid returns a representative point for the geometry: the
// area-weighted spherical centroid of the outer rings, falling back to the
// bounding box center when the rings are degenerate.
func Centroid(g Geometry) (Point, bool) {
	var sum r3.Vector
	for _, poly := range g.Polygons {
		outer := poly.Outer()
		if outer.Validate() != nil {
			continue
		}
		loop := ringLoop(outer)
		sum = sum.Add(loop.Centroid().Vector)
	}

	if sum.Norm() > 0 {
		ll := s2.LatLngFromPoint(s2.Point{Vector: sum})
		p := Point{Lon: ll.Lng.Degrees(), Lat: ll.Lat.Degrees()}
		if p.Valid() {
			return p, true
		}
	}

	rect := g.Bounds()
	if rect.IsEmpty() {
		return Point{}, false
	}
	c := rect.Center()
	p := Point{Lon: c.X, Lat: c.Y}
	return p, p.Valid()
}

// ringLoop converts a closed ring into an s2 loop. Shapes covering more than a
// hemisphere are inverted, since source rings arrive in either winding order.
func ringLoop(r Ring) *s2.Loop {
	pts := make([]s2.Point, 0, len(r)-1)
	for _, p := range r[:len(r)-1] {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lon)))
	}
	loop := s2.LoopFromPoints(pts)
	if loop.Area() > 2*math.Pi {
		loop.Invert()
	}
	return loop
}
