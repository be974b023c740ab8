// Package match finds, for each boundary, the most severe alert covering the
// boundary's representative point.
//
// Every (boundary, alert) pair is first checked with a bounding-box overlap
// test; the ray-cast containment test runs only on overlapping pairs. At tens
// of boundaries and a few hundred alerts this needs no spatial index.
package match

import (
	"github.com/golang/geo/r2"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

type preparedBoundary struct {
	id    string
	point geo.Point
	box   r2.Rect
}

type preparedAlert struct {
	alert *domain.Alert
	box   r2.Rect
}

// Matcher holds precomputed boundary boxes and points. It is immutable and
// safe for concurrent use.
type Matcher struct {
	boundaries []preparedBoundary
	index      map[string]int
}

// NewMatcher prepares boundaries for matching. Boundaries without geometry or
// a usable representative point are left out.
func NewMatcher(boundaries []domain.Boundary) *Matcher {
	m := &Matcher{index: make(map[string]int, len(boundaries))}
	for _, b := range boundaries {
		pb, ok := prepareBoundary(b)
		if !ok {
			continue
		}
		if _, dup := m.index[pb.id]; dup {
			continue
		}
		m.index[pb.id] = len(m.boundaries)
		m.boundaries = append(m.boundaries, pb)
	}
	return m
}

// RepresentativePoint returns the boundary's supplied point when valid and
// otherwise the centroid of its geometry.
func RepresentativePoint(b domain.Boundary) (geo.Point, bool) {
	if b.HasPoint && b.Point.Valid() {
		return b.Point, true
	}
	if b.Geometry == nil {
		return geo.Point{}, false
	}
	return geo.Centroid(*b.Geometry)
}

func prepareBoundary(b domain.Boundary) (preparedBoundary, bool) {
	if b.ID == "" || b.Geometry == nil || len(b.Geometry.Polygons) == 0 {
		return preparedBoundary{}, false
	}
	p, ok := RepresentativePoint(b)
	if !ok {
		return preparedBoundary{}, false
	}
	box := b.Geometry.Bounds().AddPoint(r2.Point{X: p.Lon, Y: p.Lat})
	return preparedBoundary{id: b.ID, point: p, box: box}, true
}

// Len returns the number of boundaries that take part in matching.
func (m *Matcher) Len() int { return len(m.boundaries) }

// Has reports whether id names a matchable boundary.
func (m *Matcher) Has(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Match returns the highest level covering each boundary. Boundaries with no
// covering alert are absent; the result is never nil.
func (m *Matcher) Match(alerts []domain.Alert) domain.MatchResult {
	result := make(domain.MatchResult)
	prepared := prepareAlerts(alerts)
	if len(prepared) == 0 {
		return result
	}
	for _, b := range m.boundaries {
		for _, pa := range prepared {
			if !covers(b, pa) {
				continue
			}
			if cur, ok := result[b.id]; !ok || severity.Compare(pa.alert.Level, cur) > 0 {
				result[b.id] = pa.alert.Level
			}
		}
	}
	return result
}

// AlertsFor returns, in input order, the alerts covering one boundary. The
// bool is false when the boundary is unknown or was skipped.
func (m *Matcher) AlertsFor(id string, alerts []domain.Alert) ([]domain.Alert, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	b := m.boundaries[i]
	out := []domain.Alert{}
	for _, pa := range prepareAlerts(alerts) {
		if covers(b, pa) {
			out = append(out, *pa.alert)
		}
	}
	return out, true
}

// Match is a one-shot convenience over NewMatcher.
func Match(alerts []domain.Alert, boundaries []domain.Boundary) domain.MatchResult {
	return NewMatcher(boundaries).Match(alerts)
}

func prepareAlerts(alerts []domain.Alert) []preparedAlert {
	out := make([]preparedAlert, 0, len(alerts))
	for i := range alerts {
		a := &alerts[i]
		if !a.HasGeometry() {
			continue
		}
		out = append(out, preparedAlert{alert: a, box: a.Geometry.Bounds()})
	}
	return out
}

func covers(b preparedBoundary, pa preparedAlert) bool {
	if !b.box.Intersects(pa.box) {
		return false
	}
	return pa.alert.Geometry.ContainsPoint(b.point)
}
