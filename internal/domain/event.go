package domain

import (
	"strings"
	"time"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/severity"
)

// Agency identifies the upstream alert publisher.
type Agency string

const (
	AgencyNWS  Agency = "nws"
	AgencyECCC Agency = "eccc"
)

// Jurisdiction tags alerts and boundaries with their country.
type Jurisdiction string

const (
	JurisdictionUS Jurisdiction = "US"
	JurisdictionCA Jurisdiction = "CA"
)

// GeometrySource records how an alert's geometry was obtained.
type GeometrySource string

const (
	GeometryFromFeed    GeometrySource = "feed"
	GeometryFromZones   GeometrySource = "zone"
	GeometryFromRegion  GeometrySource = "region"
	GeometryFromDefault GeometrySource = "default"
	GeometryNone        GeometrySource = "none"
)

// Alert is one normalized hazard alert from either agency.
type Alert struct {
	ID           string       `json:"id"`
	Agency       Agency       `json:"agency"`
	Jurisdiction Jurisdiction `json:"jurisdiction"`

	Event       string `json:"event"`
	Category    string `json:"category,omitempty"`
	Headline    string `json:"headline,omitempty"`
	Description string `json:"description,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	AreaDesc    string `json:"area_desc,omitempty"`

	Status      string `json:"status,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	Language    string `json:"language,omitempty"`

	// Raw severity vocabulary as published. NWS and CAP populate the triple;
	// ECCC also carries its own alert type.
	Severity  string `json:"severity,omitempty"`
	Urgency   string `json:"urgency,omitempty"`
	Certainty string `json:"certainty,omitempty"`
	AlertType string `json:"alert_type,omitempty"`
	Ended     bool   `json:"-"`

	ZoneIDs []string `json:"zone_ids,omitempty"`

	Effective time.Time `json:"effective,omitzero"`
	Onset     time.Time `json:"onset,omitzero"`
	Expires   time.Time `json:"expires,omitzero"`

	Geometry       *geo.Geometry  `json:"geometry,omitempty"`
	GeometrySource GeometrySource `json:"geometry_source"`

	Level severity.Level `json:"level"`
	Web   string         `json:"web,omitempty"`
}

// SeverityInput returns the raw tuple the severity normalizer scores.
func (a Alert) SeverityInput() severity.Input {
	scheme := severity.SchemeCAP
	if a.Agency == AgencyECCC {
		scheme = severity.SchemeECCC
	}
	return severity.Input{
		Scheme:    scheme,
		Severity:  a.Severity,
		Urgency:   a.Urgency,
		Certainty: a.Certainty,
		AlertType: a.AlertType,
		Event:     a.Event,
		Category:  a.Category,
		Headline:  a.Headline,
	}
}

// Expired reports whether the alert has an expiry at or before now.
func (a Alert) Expired(now time.Time) bool {
	return !a.Expires.IsZero() && !a.Expires.After(now)
}

// Active reports whether the alert should be shown at now: not ended, not a
// cancellation, and not expired.
func (a Alert) Active(now time.Time) bool {
	if a.Ended || strings.EqualFold(a.MessageType, "Cancel") {
		return false
	}
	return !a.Expired(now)
}

// HasGeometry reports whether the alert carries at least one polygon.
func (a Alert) HasGeometry() bool {
	return a.Geometry != nil && len(a.Geometry.Polygons) > 0
}
