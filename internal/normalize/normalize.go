// Package normalize provides utilities for normalizing and sanitizing text
// coming from the host and from rating providers.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Matches any non-alphanumeric ASCII character.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches multiple hyphens.
	multipleHyphens = regexp.MustCompile(`-+`)
)

// Title folds a title for comparison: diacritics removed, case folded,
// punctuation dropped and whitespace collapsed. Letters outside Latin script
// are kept so native titles still compare.
//
//	"Shingeki no Kyojin: The Final Season" -> "shingeki no kyojin the final season"
//	"Amélie"                              -> "amelie"
//	"進撃の巨人"                            -> "進撃の巨人"
func Title(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, SanitizeString(s))
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// TitlesMatch reports whether any candidate folds to the same string as want.
func TitlesMatch(want string, candidates ...string) bool {
	w := Title(want)
	if w == "" {
		return false
	}
	for _, c := range candidates {
		if Title(c) == w {
			return true
		}
	}
	return false
}

// Slugify converts a string to a URL- and CSS-safe slug.
// "Science Fiction" -> "science-fiction".
// "Sci-Fi & Fantasy" -> "sci-fi-fantasy".
func Slugify(s string) string {
	// Normalize unicode (decompose accented characters).
	s = norm.NFKD.String(s)

	// Remove non-ASCII characters.
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = strings.ToLower(s)
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = multipleHyphens.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SanitizeString removes null bytes, which some host metadata carries
// through from embedded file tags.
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
