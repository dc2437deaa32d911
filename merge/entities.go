package merge

import (
	"sort"

	"narrative-agent/state"
)

// mergeEntities folds incoming records into the accumulated list. Each
// candidate is matched against accumulated records in scan order: an exact
// match on all key fields wins, otherwise a token-overlap similarity of at
// least threshold on any similarity field pair. The first qualifying record
// absorbs the candidate (first-match, not best-match); candidates matching
// nothing are appended. Records never split once merged.
func mergeEntities[T any](
	accumulated, incoming []T,
	keys func(T) []string,
	simTexts func(T) []string,
	threshold float64,
	reconcile func(existing, incoming T) T,
) []T {
	result := append([]T(nil), accumulated...)
	for _, cand := range incoming {
		matched := -1
		for i, existing := range result {
			if keysEqual(keys(existing), keys(cand)) {
				matched = i
				break
			}
			if simTexts != nil && maxSimilarity(simTexts(existing), simTexts(cand)) >= threshold {
				matched = i
				break
			}
		}
		if matched >= 0 {
			result[matched] = reconcile(result[matched], cand)
		} else {
			result = append(result, cand)
		}
	}
	return result
}

// keysEqual reports whether every key field is present on both records and
// normalized-equal. A missing key on either side disqualifies the exact match
// and leaves only the similarity fallback.
func keysEqual(a, b []string) bool {
	for i := range a {
		if a[i] == "" || b[i] == "" {
			return false
		}
		if Normalize(a[i]) != Normalize(b[i]) {
			return false
		}
	}
	return true
}

func maxSimilarity(a, b []string) float64 {
	best := 0.0
	for i := range a {
		if s := Similarity(a[i], b[i]); s > best {
			best = s
		}
	}
	return best
}

// keepOrAdopt implements the default reconciliation rule for descriptive
// fields: the first observed non-empty value wins.
func keepOrAdopt(existing, incoming string) string {
	if existing != "" {
		return existing
	}
	return incoming
}

// earlierSpan prefers the citation with the smaller span rank; an existing
// value is kept on ties and when neither span carries a position.
func earlierSpan(existing, incoming string) string {
	if SpanRank(existing) <= SpanRank(incoming) && existing != "" {
		return existing
	}
	if incoming != "" {
		return incoming
	}
	return existing
}

// unionAliases merges alias collections as a sorted set. A nil incoming
// collection leaves the existing one untouched; an empty existing one adopts
// the incoming collection verbatim.
func unionAliases(existing, incoming []string) []string {
	if incoming == nil {
		return existing
	}
	if len(existing) == 0 {
		return incoming
	}
	set := make(map[string]struct{}, len(existing)+len(incoming))
	for _, a := range existing {
		set[a] = struct{}{}
	}
	for _, a := range incoming {
		set[a] = struct{}{}
	}
	merged := make([]string, 0, len(set))
	for a := range set {
		merged = append(merged, a)
	}
	sort.Strings(merged)
	return merged
}

func maxConfidence(a, b state.Confidence) state.Confidence {
	if a >= b {
		return a
	}
	return b
}

func reconcileCharacter(existing, incoming state.Character) state.Character {
	out := existing
	out.ID = keepOrAdopt(existing.ID, incoming.ID)
	out.Name = keepOrAdopt(existing.Name, incoming.Name)
	out.Aliases = unionAliases(existing.Aliases, incoming.Aliases)
	out.Role = keepOrAdopt(existing.Role, incoming.Role)
	out.FirstAppearance = earlierSpan(existing.FirstAppearance, incoming.FirstAppearance)
	out.Description = keepOrAdopt(existing.Description, incoming.Description)
	out.Confidence = maxConfidence(existing.Confidence, incoming.Confidence)
	return out
}

func reconcileLocation(existing, incoming state.Location) state.Location {
	out := existing
	out.ID = keepOrAdopt(existing.ID, incoming.ID)
	out.Name = keepOrAdopt(existing.Name, incoming.Name)
	out.Type = keepOrAdopt(existing.Type, incoming.Type)
	out.FirstAppearance = earlierSpan(existing.FirstAppearance, incoming.FirstAppearance)
	out.Description = keepOrAdopt(existing.Description, incoming.Description)
	out.Confidence = maxConfidence(existing.Confidence, incoming.Confidence)
	return out
}

func reconcileItem(existing, incoming state.Item) state.Item {
	out := existing
	out.ID = keepOrAdopt(existing.ID, incoming.ID)
	out.Name = keepOrAdopt(existing.Name, incoming.Name)
	out.Category = keepOrAdopt(existing.Category, incoming.Category)
	out.FirstAppearance = earlierSpan(existing.FirstAppearance, incoming.FirstAppearance)
	out.Description = keepOrAdopt(existing.Description, incoming.Description)
	out.Confidence = maxConfidence(existing.Confidence, incoming.Confidence)
	return out
}
