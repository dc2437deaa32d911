// Package merge reconciles independently extracted partial narrative states
// into one canonical state. Matching is purely lexical: exact comparison over
// normalized key fields, token-set overlap over descriptive text.
package merge

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Similarity is the Jaccard overlap of case-folded word tokens in [0, 1].
// Two empty texts are maximally similar so that absent fields never produce
// a spurious non-match; one empty side scores 0.
func Similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Normalize canonicalizes a string for exact-match comparison: trimmed,
// internal whitespace runs collapsed to single spaces, lowercased. Every key
// comparison in this package goes through it so that incidental whitespace
// and casing differences between oracle calls do not defeat deduplication.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
