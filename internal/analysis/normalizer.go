package analysis

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NotFound is the index returned when a column cannot be resolved.
const NotFound = -1

// Normalize removes every whitespace rune from a header and upper-cases the
// rest, so "BME1_Temp", " bme1_temp " and "BME1 _TEMP" compare equal.
func Normalize(header string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, header)

	// A Caser keeps state between calls and must not be shared.
	return cases.Upper(language.Und).String(stripped)
}

// NormalizeHeader normalizes every entry of a header.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = Normalize(h)
	}
	return out
}

// ResolveColumn finds the header entry whose normalized form equals the
// normalized name. It does not consult any alias table.
func ResolveColumn(name string, header []string) int {
	target := Normalize(name)
	for i, h := range header {
		if Normalize(h) == target {
			return i
		}
	}
	return NotFound
}
