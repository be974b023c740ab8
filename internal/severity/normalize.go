package severity

import (
	"math"
	"slices"
	"strings"
)

// Scheme selects which base table applies to an Input.
type Scheme int

const (
	// SchemeCAP uses the CAP severity enum (Extreme/Severe/Moderate/Minor/Unknown).
	SchemeCAP Scheme = iota
	// SchemeECCC uses the Canadian alert type (warning/watch/advisory/statement).
	SchemeECCC
)

// Input is the raw severity tuple of one alert.
type Input struct {
	Scheme    Scheme
	Severity  string
	Urgency   string
	Certainty string
	AlertType string
	Event     string
	Category  string
	Headline  string
}

const (
	immediateBoost = 0.5
	observedBoost  = 0.5
)

var capBase = map[string]float64{
	"extreme":  3,
	"severe":   2,
	"moderate": 1,
	"minor":    0,
	"unknown":  0,
}

var ecccBase = map[string]float64{
	"warning":   3,
	"watch":     2,
	"advisory":  1,
	"statement": 0,
}

// ecccKeywords is consulted in order when the alert type is missing or
// unrecognized. English and French names are both listed.
var ecccKeywords = []struct {
	word string
	base float64
}{
	{"warning", 3},
	{"avertissement", 3},
	{"watch", 2},
	{"veille", 2},
	{"advisory", 1},
	{"avis", 1},
}

// overrides force Critical when any of them appears in the event, category
// or headline text. Matching is case-insensitive.
var overrides = []string{
	"tsunami",
	"tornado warning",
	"tornado emergency",
	"earthquake",
	"extreme wind warning",
	"hurricane warning",
	"flash flood emergency",
	"civil emergency",
	"evacuation",
	"nuclear power plant warning",
}

// Normalize computes the unified level: base table, then urgency and
// certainty boosts, round and clamp, then the keyword override.
func Normalize(in Input) Level {
	if _, ok := Override(in); ok {
		return Critical
	}

	score := base(in)
	if strings.EqualFold(strings.TrimSpace(in.Urgency), "Immediate") {
		score += immediateBoost
	}
	if strings.EqualFold(strings.TrimSpace(in.Certainty), "Observed") {
		score += observedBoost
	}
	return Clamp(Level(math.Round(score)))
}

// Override returns the keyword that forces an input to Critical, if any.
func Override(in Input) (string, bool) {
	text := strings.ToLower(in.Event + "\n" + in.Category + "\n" + in.Headline)
	for _, kw := range overrides {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}

func base(in Input) float64 {
	switch in.Scheme {
	case SchemeECCC:
		if v, ok := ecccBase[strings.ToLower(strings.TrimSpace(in.AlertType))]; ok {
			return v
		}
		text := strings.ToLower(in.Event + " " + in.Headline)
		for _, k := range ecccKeywords {
			if strings.Contains(text, k.word) {
				return k.base
			}
		}
		return 0
	default:
		return capBase[strings.ToLower(strings.TrimSpace(in.Severity))]
	}
}

// SortDescending orders items by level, highest first. Items with equal
// levels keep their input order.
func SortDescending[T any](items []T, level func(T) Level) {
	slices.SortStableFunc(items, func(a, b T) int {
		return Compare(level(b), level(a))
	})
}
