package resolver

import (
	"strings"

	"github.com/couchcryptid/tribal-hazard-alerts/internal/domain"
	"github.com/couchcryptid/tribal-hazard-alerts/internal/geo"
)

// Region is a named area with a coarse bounding box. Match receives the
// accent- and case-folded area description.
type Region struct {
	Name         string
	Jurisdiction domain.Jurisdiction
	Match        func(folded string) bool
	Box          geo.Geometry
}

// containsAny builds a Match predicate true when any of the folded names
// appears in the text.
func containsAny(names ...string) func(string) bool {
	return func(text string) bool {
		for _, n := range names {
			if strings.Contains(text, n) {
				return true
			}
		}
		return false
	}
}

// containsWord is containsAny for short tokens like state abbreviations that
// must stand alone.
func containsWord(words ...string) func(string) bool {
	return func(text string) bool {
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return !(r >= 'a' && r <= 'z')
		})
		for _, f := range fields {
			for _, w := range words {
				if f == w {
					return true
				}
			}
		}
		return false
	}
}

func either(preds ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, p := range preds {
			if p(text) {
				return true
			}
		}
		return false
	}
}

func region(name string, j domain.Jurisdiction, match func(string) bool, minLon, minLat, maxLon, maxLat float64) Region {
	return Region{Name: name, Jurisdiction: j, Match: match, Box: geo.Box(minLon, minLat, maxLon, maxLat)}
}

// DefaultRegions lists provinces and territories, then the US states with
// significant tribal land. Order matters: the first match wins, so names that
// contain other names come first.
func DefaultRegions() []Region {
	ca, us := domain.JurisdictionCA, domain.JurisdictionUS
	return []Region{
		region("Newfoundland and Labrador", ca, containsAny("newfoundland", "labrador", "terre-neuve"), -67.8, 46.6, -52.6, 60.4),
		region("Prince Edward Island", ca, containsAny("prince edward island", "ile-du-prince-edouard"), -64.4, 45.9, -61.9, 47.1),
		region("Nova Scotia", ca, containsAny("nova scotia", "nouvelle-ecosse"), -66.4, 43.4, -59.7, 47.1),
		region("New Brunswick", ca, containsAny("new brunswick", "nouveau-brunswick"), -69.1, 44.6, -63.7, 48.1),
		region("Quebec", ca, containsAny("quebec"), -79.8, 45.0, -57.1, 62.6),
		region("Ontario", ca, containsAny("ontario"), -95.2, 41.7, -74.3, 56.9),
		region("Manitoba", ca, containsAny("manitoba"), -102.0, 49.0, -88.9, 60.0),
		region("Saskatchewan", ca, containsAny("saskatchewan"), -110.0, 49.0, -101.4, 60.0),
		region("Alberta", ca, containsAny("alberta"), -120.0, 49.0, -110.0, 60.0),
		region("British Columbia", ca, containsAny("british columbia", "colombie-britannique"), -139.1, 48.3, -114.0, 60.0),
		region("Yukon", ca, containsAny("yukon"), -141.0, 60.0, -123.8, 69.6),
		region("Northwest Territories", ca, containsAny("northwest territories", "territoires du nord-ouest"), -136.5, 60.0, -102.0, 78.8),
		region("Nunavut", ca, containsAny("nunavut"), -120.7, 51.6, -61.2, 83.1),

		region("Washington", us, either(containsAny("washington"), containsWord("wa")), -124.85, 45.54, -116.92, 49.0),
		region("Oregon", us, containsAny("oregon"), -124.57, 41.99, -116.46, 46.29),
		region("Idaho", us, containsAny("idaho"), -117.24, 41.99, -111.04, 49.0),
		region("Montana", us, either(containsAny("montana"), containsWord("mt")), -116.05, 44.36, -104.04, 49.0),
		region("Arizona", us, either(containsAny("arizona"), containsWord("az")), -114.82, 31.33, -109.04, 37.0),
		region("New Mexico", us, either(containsAny("new mexico"), containsWord("nm")), -109.05, 31.33, -103.0, 37.0),
		region("Oklahoma", us, containsAny("oklahoma"), -103.0, 33.62, -94.43, 37.0),
		region("South Dakota", us, either(containsAny("south dakota"), containsWord("sd")), -104.06, 42.48, -96.44, 45.95),
		region("North Dakota", us, containsAny("north dakota"), -104.05, 45.93, -96.55, 49.0),
		region("Minnesota", us, either(containsAny("minnesota"), containsWord("mn")), -97.24, 43.5, -89.49, 49.38),
		region("Alaska", us, either(containsAny("alaska"), containsWord("ak")), -179.15, 51.21, -129.98, 71.39),
	}
}

// DefaultBoxes are the jurisdiction-wide fallbacks used when no region matches.
func DefaultBoxes() map[domain.Jurisdiction]geo.Geometry {
	return map[domain.Jurisdiction]geo.Geometry{
		domain.JurisdictionCA: geo.Box(-141.0, 41.68, -52.62, 83.11),
		domain.JurisdictionUS: geo.Box(-124.85, 24.40, -66.88, 49.38),
	}
}
