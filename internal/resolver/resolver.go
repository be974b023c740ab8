// Package resolver supplies geometry for alerts whose source omitted it, from
// a static zone table or, failing that, a named-region bounding box.
package resolver

import (
	"context"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/safeparse"
)

// ZoneTable looks up administrative zone geometry by id. Tables that go over
// the network must give up when ctx is done.
type ZoneTable interface {
	Zone(ctx context.Context, id string) (geo.Geometry, bool)
}

// MapZones is an in-memory ZoneTable.
type MapZones map[string]geo.Geometry

// Zone implements ZoneTable. Geometries that fail validation are treated as
// missing.
func (m MapZones) Zone(_ context.Context, id string) (geo.Geometry, bool) {
	g, ok := m[id]
	if !ok || g.Validate() != nil {
		return geo.Geometry{}, false
	}
	return g, true
}

// Resolver picks geometry for an alert. It is safe for concurrent use once
// constructed.
type Resolver struct {
	zones    ZoneTable
	regions  []Region
	defaults map[domain.Jurisdiction]geo.Geometry
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithRegions replaces the named-region table.
func WithRegions(regions []Region) Option {
	return func(r *Resolver) { r.regions = regions }
}

// WithDefaults replaces the jurisdiction-wide fallback boxes.
func WithDefaults(defaults map[domain.Jurisdiction]geo.Geometry) Option {
	return func(r *Resolver) { r.defaults = defaults }
}

// New creates a Resolver over zones, which may be nil.
func New(zones ZoneTable, opts ...Option) *Resolver {
	r := &Resolver{
		zones:    zones,
		regions:  DefaultRegions(),
		defaults: DefaultBoxes(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the alert's geometry and how it was obtained, in priority
// order: valid feed geometry, the union of referenced zones, the first
// matching named region, the jurisdiction default box. Alerts with no usable
// input get (nil, GeometryNone).
func (r *Resolver) Resolve(ctx context.Context, a domain.Alert) (*geo.Geometry, domain.GeometrySource) {
	if a.Geometry != nil && a.Geometry.Validate() == nil {
		return a.Geometry, domain.GeometryFromFeed
	}

	if g, ok := r.fromZones(ctx, a.ZoneIDs); ok {
		return &g, domain.GeometryFromZones
	}

	if a.AreaDesc == "" {
		return nil, domain.GeometryNone
	}

	folded := safeparse.Fold(a.AreaDesc)
	for _, reg := range r.regions {
		if reg.Jurisdiction != "" && a.Jurisdiction != "" && reg.Jurisdiction != a.Jurisdiction {
			continue
		}
		if reg.Match(folded) {
			g := reg.Box
			return &g, domain.GeometryFromRegion
		}
	}

	if g, ok := r.defaults[a.Jurisdiction]; ok {
		return &g, domain.GeometryFromDefault
	}
	return nil, domain.GeometryNone
}

func (r *Resolver) fromZones(ctx context.Context, ids []string) (geo.Geometry, bool) {
	if r.zones == nil || len(ids) == 0 {
		return geo.Geometry{}, false
	}
	var found []geo.Geometry
	for _, id := range ids {
		if g, ok := r.zones.Zone(ctx, id); ok {
			found = append(found, g)
		}
	}
	if len(found) == 0 {
		return geo.Geometry{}, false
	}
	return geo.Union(found...), true
}
