package domain

import (
	"time"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

// Boundary is one tribal land area. Boundaries are loaded once and never
// modified.
type Boundary struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Jurisdiction Jurisdiction  `json:"jurisdiction,omitempty"`
	Geometry     *geo.Geometry `json:"geometry,omitempty"`

	// Point is the representative point used for containment tests. It is
	// meaningful only when HasPoint is set.
	Point    geo.Point `json:"-"`
	HasPoint bool      `json:"-"`
}

// MatchResult maps boundary id to the highest level among alerts covering the
// boundary's representative point. Boundaries with no covering alert are absent.
type MatchResult map[string]severity.Level

// SourceStatus reports the outcome of one source's fetch in a poll cycle.
type SourceStatus struct {
	Name   string `json:"name"`
	Agency Agency `json:"agency"`
	OK     bool   `json:"ok"`
	Alerts int    `json:"alerts"`
	Failed int    `json:"failed_items,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Snapshot is the complete output of one poll cycle.
type Snapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Alerts      []Alert        `json:"alerts"`
	Matches     MatchResult    `json:"matches"`
	Sources     []SourceStatus `json:"sources"`
}
