package textparse

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// ellipsis is removed wherever it appears; result cards truncate long
// descriptions with it.
const ellipsis = "..."

// escapedHexPattern matches literal escaped bytes such as `\xe2` that leak
// into scraped text.
var escapedHexPattern = regexp.MustCompile(`\\x[0-9a-fA-F]{2}`)

// asciiOnly drops every rune outside the ASCII range. Invalid UTF-8 decodes
// to utf8.RuneError and is dropped as well.
var asciiOnly = runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
}))

// CleanText strips non-ASCII characters, escaped hex bytes and ellipses from
// raw and trims surrounding whitespace. If the ASCII filter fails the
// ellipsis-stripped, trimmed input is returned unfiltered.
func CleanText(raw string) string {
	filtered, _, err := transform.String(asciiOnly, raw)
	if err != nil {
		return strings.TrimSpace(strings.ReplaceAll(raw, ellipsis, ""))
	}

	filtered = escapedHexPattern.ReplaceAllString(filtered, "")
	return strings.TrimSpace(strings.ReplaceAll(filtered, ellipsis, ""))
}

// CountOccurrences returns the number of non-overlapping occurrences of
// query in text. An empty query never matches.
func CountOccurrences(text, query string) int {
	if query == "" {
		return 0
	}
	return strings.Count(text, query)
}
