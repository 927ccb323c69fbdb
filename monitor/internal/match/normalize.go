// CLAUDE:SUMMARY Diacritic/case folding and whitespace collapsing applied identically to watch terms and document text.
// Package match tests extracted document text against watch terms.
//
// Both sides go through Normalize, then each term is compiled into a
// Pattern tolerant of noise between its characters. Matching happens on the
// normalized buffer; snippets are cut from the raw buffer by projecting the
// match offset (see Snippet).
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text, strips combining diacritical marks and
// collapses every whitespace run into a single space. Pure and total.
func Normalize(text string) string {
	folded, _, err := transform.String(foldMarks(), strings.ToLower(text))
	if err != nil {
		// transform only fails on invalid input state; fall back to the lower-cased text.
		folded = strings.ToLower(text)
	}
	return collapseSpace(folded)
}

// foldMarks returns a fresh chain: transform.Chain values are stateful and
// must not be shared between goroutines.
func foldMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// collapseSpace replaces each run of Unicode whitespace with one ASCII space.
// Leading and trailing runs are kept as a single space, not trimmed, so the
// normalized buffer stays proportional to the raw one.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
