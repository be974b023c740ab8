package safeparse

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ParseJSON decodes data into generic maps and slices. Malformed input yields nil.
func ParseJSON(data []byte) any {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil
	}
	return doc
}

// DecodeJSON decodes data into a new T, returning nil on malformed input.
func DecodeJSON[T any](data []byte) *T {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	return &v
}

// DecodeXML decodes data into a new T, returning nil on malformed input.
func DecodeXML[T any](data []byte) *T {
	var v T
	if err := xml.Unmarshal(data, &v); err != nil {
		return nil
	}
	return &v
}

// Get walks a dot-separated path through a ParseJSON document. Numeric
// segments index into arrays. Any missing step returns def.
func Get(doc any, path string, def any) any {
	cur := doc
	if path != "" {
		for _, key := range strings.Split(path, ".") {
			switch node := cur.(type) {
			case map[string]any:
				v, ok := node[key]
				if !ok {
					return def
				}
				cur = v
			case []any:
				i, err := strconv.Atoi(key)
				if err != nil || i < 0 || i >= len(node) {
					return def
				}
				cur = node[i]
			default:
				return def
			}
		}
	}
	if cur == nil {
		return def
	}
	return cur
}

// GetString returns the string at path, or def when absent or not a string.
// JSON numbers are rendered in their source form.
func GetString(doc any, path, def string) string {
	switch v := Get(doc, path, nil).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return def
	}
}

// GetStrings returns the string elements of the array at path. Non-string
// elements are skipped.
func GetStrings(doc any, path string) []string {
	arr, ok := Get(doc, path, nil).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// ParseFloat accepts a string, json.Number or float64 and rejects NaN and Inf.
func ParseFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseLatitude parses a latitude in [-90, 90].
func ParseLatitude(v any) (float64, bool) {
	return parseRange(v, 90)
}

// ParseLongitude parses a longitude in [-180, 180].
func ParseLongitude(v any) (float64, bool) {
	return parseRange(v, 180)
}

func parseRange(v any, limit float64) (float64, bool) {
	f, ok := ParseFloat(v)
	if !ok || f < -limit || f > limit {
		return 0, false
	}
	return f, true
}

// ParseTime parses an RFC 3339 timestamp, returning the zero time on failure.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Fold lowercases s and strips diacritics so "Québec" and "quebec" compare
// equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
