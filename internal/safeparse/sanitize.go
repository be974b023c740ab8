package safeparse

import (
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicy = bluemonday.StrictPolicy()
	htmlPolicy = newAlertPolicy()
)

var allowedSchemes = map[string]bool{"http": true, "https": true, "mailto": true}

var blockedSchemes = []string{"javascript:", "data:", "vbscript:"}

func newAlertPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "i", "em", "strong", "p", "br", "ul", "ol", "li", "span")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	return p
}

// SanitizeAlertHTML keeps a small set of formatting tags and links. Scripts,
// styles, iframes and event handlers are removed together with their content.
// Feed fields are stored as plain text; this is the mode for consumers that
// render alert bodies as HTML.
func SanitizeAlertHTML(s string) string {
	return strings.TrimSpace(htmlPolicy.Sanitize(s))
}

// maxDecodePasses bounds how many layers of entity encoding stripText peels.
const maxDecodePasses = 4

// stripText removes markup and decodes entities until the text stops
// changing, so entity-encoded tags are stripped rather than revived. Input
// still changing after maxDecodePasses loses its angle brackets.
func stripText(s string) string {
	for range maxDecodePasses {
		next := html.UnescapeString(textPolicy.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

// SanitizeText strips all markup, decodes entities and collapses runs of
// whitespace.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(stripText(s)), " ")
}

// SanitizeMultiline is SanitizeText without folding line breaks.
func SanitizeMultiline(s string) string {
	if s == "" {
		return ""
	}
	stripped := stripText(s)
	lines := strings.Split(strings.ReplaceAll(stripped, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SanitizeURL returns raw unchanged when it is an http, https or mailto URL, or
// a relative reference free of script schemes. Anything else is rejected.
func SanitizeURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	// Browsers ignore embedded whitespace and control characters in schemes.
	compact := strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, html.UnescapeString(trimmed)))
	for _, bad := range blockedSchemes {
		if strings.Contains(compact, bad) {
			return "", false
		}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	if u.Scheme == "" {
		return raw, true
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return "", false
	}
	return raw, true
}
