package merge

import (
	"sort"
	"strings"

	"narrative-agent/state"
)

// dedupeRelations keeps the first occurrence of each normalized
// (subject, predicate, object) triple, walking accumulated then incoming.
// Duplicates are dropped whole; no field reconciliation happens here, so a
// later triple with different evidence does not overwrite the earlier one.
func dedupeRelations(accumulated, incoming []state.Relation) []state.Relation {
	seen := make(map[[3]string]struct{}, len(accumulated)+len(incoming))
	out := make([]state.Relation, 0, len(accumulated)+len(incoming))
	for _, rel := range append(append([]state.Relation(nil), accumulated...), incoming...) {
		key := [3]string{Normalize(rel.Subject), Normalize(rel.Predicate), Normalize(rel.Object)}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rel)
	}
	return out
}

// dedupeUnresolved is the same first-occurrence walk keyed on the normalized
// question plus its sorted, normalized hypothesis list.
func dedupeUnresolved(accumulated, incoming []state.Unresolved) []state.Unresolved {
	seen := make(map[string]struct{}, len(accumulated)+len(incoming))
	out := make([]state.Unresolved, 0, len(accumulated)+len(incoming))
	for _, q := range append(append([]state.Unresolved(nil), accumulated...), incoming...) {
		key := unresolvedKey(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func unresolvedKey(q state.Unresolved) string {
	hyps := make([]string, 0, len(q.Hypotheses))
	for _, h := range q.Hypotheses {
		hyps = append(hyps, Normalize(h))
	}
	sort.Strings(hyps)
	parts := append([]string{Normalize(q.Question)}, hyps...)
	return strings.Join(parts, "\x1f")
}
