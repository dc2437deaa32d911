package merge

import (
	"sort"
	"strings"

	"narrative-agent/state"
)

// mergeEvents folds incoming events into the accumulated sequence. Events
// carry no exact key, so matching uses a dual similarity signal: summary
// overlap or overlap of the joined actor lists, either one reaching the event
// threshold. The first accumulated event meeting the bar absorbs the
// candidate. The full sequence is then re-sorted by (order, span rank) with
// stable ties so prior relative order survives.
func (m *Merger) mergeEvents(accumulated, incoming []state.Event) []state.Event {
	result := append([]state.Event(nil), accumulated...)
	for _, cand := range incoming {
		matched := -1
		for i, existing := range result {
			sim := Similarity(existing.Summary, cand.Summary)
			if actorSim := Similarity(joinActors(existing.Actors), joinActors(cand.Actors)); actorSim > sim {
				sim = actorSim
			}
			if sim >= m.EventThreshold {
				matched = i
				break
			}
		}
		if matched >= 0 {
			result[matched] = reconcileEvent(result[matched], cand)
		} else {
			result = append(result, cand)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		oi, oj := result[i].OrderRank(), result[j].OrderRank()
		if oi != oj {
			return oi < oj
		}
		return SpanRank(result[i].EvidenceSpan) < SpanRank(result[j].EvidenceSpan)
	})
	return result
}

func joinActors(actors []string) string {
	return strings.Join(actors, " ")
}

// reconcileEvent applies the general field rules, backfills locational and
// temporal fields from the incoming event wherever the existing value is
// empty, and takes the numeric minimum of the two order hints.
func reconcileEvent(existing, incoming state.Event) state.Event {
	out := existing
	out.ID = keepOrAdopt(existing.ID, incoming.ID)
	out.Title = keepOrAdopt(existing.Title, incoming.Title)
	if len(out.Actors) == 0 {
		out.Actors = incoming.Actors
	}
	out.Location = keepOrAdopt(existing.Location, incoming.Location)
	out.ISOTime = keepOrAdopt(existing.ISOTime, incoming.ISOTime)
	out.RelativeTime = keepOrAdopt(existing.RelativeTime, incoming.RelativeTime)
	out.Summary = keepOrAdopt(existing.Summary, incoming.Summary)
	out.EvidenceSpan = keepOrAdopt(existing.EvidenceSpan, incoming.EvidenceSpan)
	out.Confidence = maxConfidence(existing.Confidence, incoming.Confidence)

	order := state.EventOrder(existing.OrderRank())
	if b := state.EventOrder(incoming.OrderRank()); b < order {
		order = b
	}
	out.Order = &order
	return out
}
