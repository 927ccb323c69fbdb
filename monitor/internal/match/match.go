package match

import "strings"

// Result lists the terms found in a document, in input order, with one
// snippet per hit when snippets were requested.
type Result struct {
	Hits     []string `json:"hits"`
	Snippets []string `json:"snippets,omitempty"`
}

// Matcher holds compiled patterns for a fixed term list.
type Matcher struct {
	patterns []*Pattern
}

// NewMatcher compiles terms. Terms that are empty after normalization are
// skipped and reported in the second return value.
func NewMatcher(terms []string) (*Matcher, []string) {
	m := &Matcher{}
	var rejected []string
	for _, t := range terms {
		p, err := Compile(t)
		if err != nil {
			rejected = append(rejected, t)
			continue
		}
		m.patterns = append(m.patterns, p)
	}
	return m, rejected
}

// Len returns the number of usable patterns.
func (m *Matcher) Len() int { return len(m.patterns) }

// Match tests raw document text against every pattern.
func (m *Matcher) Match(raw string, wantSnippets bool) Result {
	normalized := Normalize(raw)
	res := Result{Hits: []string{}}
	for _, p := range m.patterns {
		off, _, ok := p.Find(normalized)
		if !ok {
			continue
		}
		res.Hits = append(res.Hits, p.Term())
		if wantSnippets {
			res.Snippets = append(res.Snippets, Snippet(raw, normalized, off))
		}
	}
	return res
}

// Terms splits a comma-separated list into trimmed, lower-cased, unique
// terms, preserving first-seen order.
func Terms(csv string) []string {
	return CleanTerms(strings.Split(csv, ","))
}

// CleanTerms trims, lower-cases and de-duplicates terms, dropping empties.
func CleanTerms(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
