package profile

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize folds a role, title, or identifier to its lookup key: lowercase,
// underscores and hyphens read as spaces, runs of whitespace collapsed.
// The same function is applied when indexing and when looking up, so every
// spelling in Variants maps to one key.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Variants returns the spellings callers commonly use for a role or title:
// exact, lowercase, UPPER_WITH_UNDERSCORES and Title Case With Spaces.
// Normalize maps all of them to the same key.
func Variants(s string) []string {
	words := strings.Fields(Normalize(s))
	upper := strings.ToUpper(strings.Join(words, "_"))
	titled := make([]string, len(words))
	for i, w := range words {
		titled[i] = titleWord(w)
	}
	return []string{s, strings.ToLower(s), upper, strings.Join(titled, " ")}
}

func titleWord(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}
