// Package normalize canonicalizes titles and author names for fuzzy
// comparison. All functions are deterministic and side-effect-free.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Title canonicalizes a title for comparison: diacritics folded to their
// base letters, lowercased, punctuation removed, whitespace collapsed.
func Title(s string) string {
	s = foldDiacritics(s)
	s = strings.ToLower(s)
	s = stripPunctuation(s)
	return collapse(s)
}

// Name canonicalizes an author name for comparison. "Last, First" is
// rewritten to "First Last" before the same folding as Title. DBLP homonym
// suffixes (all-digit tokens like "0002") are dropped. Single-letter
// initials are kept as-is.
func Name(s string) string {
	// Handle "Last, First" format first.
	if i := strings.Index(s, ","); i >= 0 {
		parts := strings.SplitN(s, ",", 2)
		s = strings.TrimSpace(parts[1]) + " " + strings.TrimSpace(parts[0])
	}

	s = foldDiacritics(s)
	s = strings.ToLower(s)
	s = stripPunctuation(s)

	var kept []string
	for _, part := range strings.Fields(s) {
		if isAllDigits(part) {
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, " ")
}

// Authors normalizes each name in the list. An empty list normalizes to an
// empty sequence.
func Authors(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = Name(name)
	}
	return out
}

// foldDiacritics decomposes accented characters and strips the combining
// marks, so "José" compares equal to "Jose".
func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// stripPunctuation removes everything that is not a letter, digit, or
// whitespace. Removed runes leave no gap, matching \w-style folding:
// "Smith-Jones" becomes "smithjones".
func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
