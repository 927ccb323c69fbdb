// Package route selects the subscriber groups interested in a run's hits.
package route

import "github.com/hazyhaar/diario/monitor/internal/state"

// Match is a routed group with the hits it shares with the run.
type Match struct {
	Group state.Group
	Hits  []string // intersection of group terms and run hits, in run-hit order
}

// Route returns, in configuration order, every group that follows source and
// has at least one term among hits. Comparison is exact string equality:
// hits come from the cleaned term list, so group terms share its form.
func Route(source string, hits []string, groups []state.Group) []Match {
	if len(hits) == 0 {
		return nil
	}
	var out []Match
	for _, g := range groups {
		if !contains(g.Sources, source) {
			continue
		}
		var shared []string
		for _, h := range hits {
			if contains(g.Terms, h) {
				shared = append(shared, h)
			}
		}
		if len(shared) > 0 {
			out = append(out, Match{Group: g, Hits: shared})
		}
	}
	return out
}

// Names returns the group names of ms.
func Names(ms []Match) []string {
	names := make([]string, 0, len(ms))
	for _, m := range ms {
		names = append(names, m.Group.Name)
	}
	return names
}

// TermsFor returns the union, in first-seen order, of defaults and the terms
// of every group following source.
func TermsFor(source string, defaults []string, groups []state.Group) []string {
	seen := map[string]bool{}
	var out []string
	add := func(ts []string) {
		for _, t := range ts {
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(defaults)
	for _, g := range groups {
		if contains(g.Sources, source) {
			add(g.Terms)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
