// Package severity maps the two agencies' severity vocabularies onto one
// five-level ordinal scale.
package severity

import (
	"encoding/json"
	"fmt"
)

// Level is the unified severity. Values are ordered; use Compare rather than
// relying on arithmetic.
type Level int

const (
	Info Level = iota
	Low
	Moderate
	High
	Critical
)

// Min and Max bound every Level produced by Normalize.
const (
	Min = Info
	Max = Critical
)

var levelLabels = [...]string{"Info", "Low", "Moderate", "High", "Critical"}

var levelColors = [...]string{"#3B82F6", "#22C55E", "#EAB308", "#F97316", "#DC2626"}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	return l >= Min && l <= Max
}

// Label returns the display name.
func (l Level) Label() string {
	if !l.Valid() {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelLabels[l]
}

// Color returns the hex display color.
func (l Level) Color() string {
	if !l.Valid() {
		return levelColors[Info]
	}
	return levelColors[l]
}

func (l Level) String() string { return l.Label() }

// Compare returns -1, 0 or +1 as a is less than, equal to or greater than b.
func Compare(a, b Level) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Clamp forces l into [Min, Max].
func Clamp(l Level) Level {
	if l < Min {
		return Min
	}
	if l > Max {
		return Max
	}
	return l
}

type levelJSON struct {
	Level int    `json:"level"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// MarshalJSON encodes the level with its label and color for display clients.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(levelJSON{Level: int(l), Label: l.Label(), Color: l.Color()})
}

// UnmarshalJSON accepts either the object form or a bare integer.
func (l *Level) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*l = Clamp(Level(n))
		return nil
	}
	var obj levelJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode severity level: %w", err)
	}
	*l = Clamp(Level(obj.Level))
	return nil
}
