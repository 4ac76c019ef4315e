package analysis

import (
	"sort"
)

const (
	suggestThreshold = 0.3
	maxSuggestions   = 3
)

// Suggest returns up to three header columns whose normalized names share
// the most character trigrams with name, best first. It is used to point at
// likely typos when a column cannot be resolved.
func Suggest(name string, header []string) []string {
	query := trigrams(Normalize(name))
	if len(query) == 0 {
		return nil
	}

	type scored struct {
		column string
		score  float64
	}
	var matches []scored
	for _, h := range header {
		if s := jaccard(query, trigrams(Normalize(h))); s >= suggestThreshold {
			matches = append(matches, scored{column: h, score: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	out := make([]string, 0, min(len(matches), maxSuggestions))
	for _, m := range matches[:min(len(matches), maxSuggestions)] {
		out = append(out, m.column)
	}
	return out
}

// trigrams returns the set of 3-rune windows of s. Shorter strings are their
// own single gram.
func trigrams(s string) map[string]struct{} {
	runes := []rune(s)
	set := make(map[string]struct{})
	if len(runes) == 0 {
		return set
	}
	if len(runes) < 3 {
		set[s] = struct{}{}
		return set
	}
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	inter := 0
	for g := range a {
		if _, ok := b[g]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
