package match

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// ErrEmptyTerm is returned by Compile when a term has no letters, digits or
// symbols left once normalized.
var ErrEmptyTerm = errors.New("match: term is empty after normalization")

// gap matches any run of characters that are neither letters nor digits:
// hyphenation, stray spaces, line-break artifacts of text extraction.
const gap = `[^\p{L}\p{N}]*`

// Pattern is a compiled fuzzy matcher for one watch term.
type Pattern struct {
	term string
	re   *regexp.Regexp
}

// Compile builds the Pattern for term. Letters and digits of the normalized
// term are kept, as are symbol characters (+, $, <, ...), which would
// otherwise silently vanish and widen the match; whitespace and punctuation
// are dropped. Each kept character is quoted, so the term never contributes
// regexp syntax.
func Compile(term string) (*Pattern, error) {
	var parts []string
	for _, r := range Normalize(term) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSymbol(r) {
			parts = append(parts, regexp.QuoteMeta(string(r)))
		}
	}
	if len(parts) == 0 {
		return nil, ErrEmptyTerm
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(parts, gap))
	if err != nil {
		return nil, err
	}
	return &Pattern{term: term, re: re}, nil
}

// Term returns the term the pattern was compiled from.
func (p *Pattern) Term() string { return p.term }

// Find returns the byte offset and length of the first match in normalized.
func (p *Pattern) Find(normalized string) (offset, length int, ok bool) {
	loc := p.re.FindStringIndex(normalized)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1] - loc[0], true
}
