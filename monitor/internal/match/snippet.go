package match

import (
	"strings"
	"unicode/utf8"
)

// SnippetRadius is the number of runes kept on each side of a match.
const SnippetRadius = 200

// Snippet cuts a human-readable excerpt of raw around the position of a match
// found at byte offset normOffset of normalized.
//
// Normalization does not preserve positions, so the raw position is a linear
// projection: rawPos = normPos * len(raw) / len(normalized), in runes. It
// lands near the match on typical gazette text but may drift by a few
// characters on heavily accented or whitespace-padded pages.
func Snippet(raw, normalized string, normOffset int) string {
	rawRunes := []rune(raw)
	normLen := utf8.RuneCountInString(normalized)
	if len(rawRunes) == 0 || normLen == 0 {
		return ""
	}
	if normOffset > len(normalized) {
		normOffset = len(normalized)
	}
	normPos := utf8.RuneCountInString(normalized[:normOffset])
	pos := int(int64(normPos) * int64(len(rawRunes)) / int64(normLen))

	start := max(0, pos-SnippetRadius)
	end := min(len(rawRunes), pos+SnippetRadius)
	text := strings.TrimSpace(collapseSpace(string(rawRunes[start:end])))
	return "[…] " + text + " […]"
}
