// Package slug generates ASCII URL slugs from arbitrary Unicode strings.
//
// Slugs are the immutable identifiers for blog posts (e.g., "hello-world-2024").
// This package handles normalization, accent removal, and character sanitization.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// From converts an arbitrary Unicode string into a URL-safe ASCII slug:
// accents are stripped (é -> e), the result is lowercased, every maximal run
// of characters outside [a-z0-9] becomes a single hyphen, and leading and
// trailing hyphens are removed.
//
// No uniqueness suffix is added; colliding titles produce identical slugs and
// the caller decides what to do about it.
func From(s string) string {
	// Decompose accented characters and drop the combining marks
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}

	result = strings.ToLower(result)

	var b strings.Builder
	b.Grow(len(result))
	pendingHyphen := false
	for _, r := range result {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	return b.String()
}
