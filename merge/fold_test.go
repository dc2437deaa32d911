package merge

import (
	"reflect"
	"sort"
	"testing"

	"narrative-agent/state"
)

func orderOf(n int64) *state.EventOrder {
	o := state.EventOrder(n)
	return &o
}

func TestFoldCharacterReconciliation(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Characters: []state.Character{{
			Name:       "Alice",
			Aliases:    []string{"Al"},
			Confidence: 0.5,
		}},
	}
	observed := state.Narrative{
		Characters: []state.Character{{
			Name:        "alice",
			Aliases:     []string{"Ally"},
			Confidence:  0.9,
			Description: "a guide",
		}},
	}

	merged := m.Fold(accumulated, observed)

	if len(merged.Characters) != 1 {
		t.Fatalf("expected 1 character after fold, got %d", len(merged.Characters))
	}
	c := merged.Characters[0]
	if c.Name != "Alice" {
		t.Errorf("name = %q, want first-observed %q", c.Name, "Alice")
	}
	if want := []string{"Al", "Ally"}; !reflect.DeepEqual(c.Aliases, want) {
		t.Errorf("aliases = %v, want %v", c.Aliases, want)
	}
	if c.Confidence != 0.9 {
		t.Errorf("confidence = %v, want max 0.9", c.Confidence)
	}
	if c.Description != "a guide" {
		t.Errorf("description = %q, want backfilled %q", c.Description, "a guide")
	}
}

func TestFoldLocationKeyIncludesType(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Locations: []state.Location{{Name: "The Mill", Type: "building", Description: "stone mill by the river"}},
	}
	observed := state.Narrative{
		Locations: []state.Location{{Name: "The Mill", Type: "region", Description: "farmland around the mill town"}},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Locations) != 2 {
		t.Fatalf("same name but different type should not merge, got %d locations", len(merged.Locations))
	}
}

func TestFoldEntitySimilarityFallback(t *testing.T) {
	m := NewMerger()
	// No shared key: the observed item has no category, so only the
	// description similarity can match it.
	accumulated := state.Narrative{
		Items: []state.Item{{Name: "prize", Category: "artifact", Description: "a golden laurel wreath kept in the vault"}},
	}
	observed := state.Narrative{
		Items: []state.Item{{Name: "the prize", Description: "a golden laurel wreath kept in the vault"}},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Items) != 1 {
		t.Fatalf("expected similarity match to merge items, got %d", len(merged.Items))
	}
	if merged.Items[0].Name != "prize" {
		t.Errorf("existing name should win, got %q", merged.Items[0].Name)
	}
}

func TestFoldFirstAppearancePrefersEarlierSpan(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Characters: []state.Character{{Name: "Bram", FirstAppearance: "L40-L44"}},
	}
	observed := state.Narrative{
		Characters: []state.Character{{Name: "Bram", FirstAppearance: "L12-L15"}},
	}

	merged := m.Fold(accumulated, observed)
	if got := merged.Characters[0].FirstAppearance; got != "L12-L15" {
		t.Errorf("first_appearance = %q, want earlier citation %q", got, "L12-L15")
	}
}

func TestFoldRelationDedup(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Relations: []state.Relation{{Subject: "A", Predicate: "knows", Object: "B"}},
	}
	observed := state.Narrative{
		Relations: []state.Relation{
			{Subject: "a", Predicate: " KNOWS ", Object: "b"},
			{Subject: "A", Predicate: "fears", Object: "B"},
		},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Relations) != 2 {
		t.Fatalf("expected case/whitespace variant to dedup, got %d relations", len(merged.Relations))
	}
	if merged.Relations[0].Predicate != "knows" {
		t.Errorf("first occurrence should survive, got %q", merged.Relations[0].Predicate)
	}
}

func TestFoldUnresolvedDedup(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Unresolved: []state.Unresolved{{
			Question:   "Who holds the prize?",
			Hypotheses: []string{"a guardian", "the warden"},
		}},
	}
	observed := state.Narrative{
		Unresolved: []state.Unresolved{
			{
				// Same question, same hypotheses in different order and case.
				Question:   "who holds  the prize?",
				Hypotheses: []string{"The Warden", "A Guardian"},
			},
			{
				Question:   "Who holds the prize?",
				Hypotheses: []string{"nobody"},
			},
		},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Unresolved) != 2 {
		t.Fatalf("expected hypothesis-set dedup, got %d questions", len(merged.Unresolved))
	}
}

func TestFoldEventOrderingAfterMerge(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Events: []state.Event{
			{Title: "finale", Order: orderOf(3), EvidenceSpan: "L50", Summary: "the gate falls"},
			{Title: "arrival", Order: orderOf(1), EvidenceSpan: "L10", Summary: "travelers reach town"},
		},
	}

	merged := m.Fold(accumulated, state.Narrative{})

	if len(merged.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(merged.Events))
	}
	if merged.Events[0].Title != "arrival" || merged.Events[1].Title != "finale" {
		t.Errorf("events not sorted by (order, span rank): %q, %q",
			merged.Events[0].Title, merged.Events[1].Title)
	}
}

func TestFoldEventDualSignalMatch(t *testing.T) {
	m := NewMerger()
	accumulated := state.Narrative{
		Events: []state.Event{{
			Title:        "the heist",
			Order:        orderOf(5),
			Actors:       []string{"char_01", "char_02"},
			Summary:      "two thieves crack the vault",
			EvidenceSpan: "L90",
		}},
	}
	observed := state.Narrative{
		Events: []state.Event{{
			// Summary is unrelated, but the actor lists overlap fully.
			Order:    orderOf(2),
			Actors:   []string{"char_01", "char_02"},
			Summary:  "an alarm rings in the night",
			Location: "loc_01",
			ISOTime:  "1922-06-01",
		}},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Events) != 1 {
		t.Fatalf("expected actor-similarity match to merge events, got %d", len(merged.Events))
	}
	e := merged.Events[0]
	if e.OrderRank() != 2 {
		t.Errorf("order = %d, want numeric minimum 2", e.OrderRank())
	}
	if e.Summary != "two thieves crack the vault" {
		t.Errorf("existing summary should win, got %q", e.Summary)
	}
	if e.Location != "loc_01" || e.ISOTime != "1922-06-01" {
		t.Errorf("empty locational/temporal fields should backfill, got %q %q", e.Location, e.ISOTime)
	}
}

func TestFoldIdempotence(t *testing.T) {
	m := NewMerger()
	base := state.Narrative{
		Characters: []state.Character{{Name: "Mara", Aliases: []string{"M"}, Confidence: 0.4}},
	}
	partial := state.Narrative{
		Characters: []state.Character{{Name: "Mara", Aliases: []string{"M", "Mother Mara"}, Confidence: 0.8, Role: "healer"}},
		Locations:  []state.Location{{Name: "Harbor", Type: "district"}},
		Events: []state.Event{{
			Title: "storm", Order: orderOf(2), Summary: "a storm wrecks the pier", EvidenceSpan: "L5",
		}},
		Relations:  []state.Relation{{Subject: "Mara", Predicate: "lives_in", Object: "Harbor"}},
		Unresolved: []state.Unresolved{{Question: "Why was the pier unguarded?"}},
	}

	once := m.Fold(base, partial)
	twice := m.Fold(once, partial)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("fold(fold(S,P),P) != fold(S,P)\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestFoldOrderIndependenceOfNonConflictingChunks(t *testing.T) {
	m := NewMerger()
	base := state.Narrative{}
	p1 := state.Narrative{
		Characters: []state.Character{{Name: "Ivo", Role: "blacksmith", Description: "a silent blacksmith from the north"}},
		Relations:  []state.Relation{{Subject: "Ivo", Predicate: "owns", Object: "forge"}},
	}
	p2 := state.Narrative{
		Characters: []state.Character{{Name: "Sela", Role: "cartographer", Description: "a traveling cartographer of the coast"}},
		Relations:  []state.Relation{{Subject: "Sela", Predicate: "maps", Object: "coast"}},
	}

	ab := m.Fold(m.Fold(base, p1), p2)
	ba := m.Fold(m.Fold(base, p2), p1)

	// Non-conflicting chunks may append in either order; compare content.
	sortChars := func(cs []state.Character) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
	}
	sortRels := func(rs []state.Relation) {
		sort.Slice(rs, func(i, j int) bool { return rs[i].Subject < rs[j].Subject })
	}
	sortChars(ab.Characters)
	sortChars(ba.Characters)
	sortRels(ab.Relations)
	sortRels(ba.Relations)

	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("fold order changed merged content\nab: %+v\nba: %+v", ab, ba)
	}
}

func TestFoldFirstMatchPolicy(t *testing.T) {
	m := NewMerger()
	// Two accumulated characters would both match the incoming one; the
	// first in scan order must absorb it.
	accumulated := state.Narrative{
		Characters: []state.Character{
			{Name: "The Stranger", Description: "a hooded figure by the gate"},
			{Name: "the stranger", Description: "a hooded figure near the gate"},
		},
	}
	observed := state.Narrative{
		Characters: []state.Character{{Name: "The Stranger", Role: "antagonist"}},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Characters) != 2 {
		t.Fatalf("expected candidate absorbed by existing record, got %d characters", len(merged.Characters))
	}
	if merged.Characters[0].Role != "antagonist" {
		t.Errorf("first accumulated match should absorb the candidate, role = %q", merged.Characters[0].Role)
	}
	if merged.Characters[1].Role != "" {
		t.Errorf("second candidate record must stay untouched, role = %q", merged.Characters[1].Role)
	}
}

func TestFoldAbsentTextFieldsCountAsFullOverlap(t *testing.T) {
	m := NewMerger()
	// Two empty texts are maximally similar, so records carrying no
	// descriptive text at all collapse into the first one seen.
	accumulated := state.Narrative{
		Characters: []state.Character{{Name: "Voice One"}},
	}
	observed := state.Narrative{
		Characters: []state.Character{{Name: "Voice Two"}},
	}

	merged := m.Fold(accumulated, observed)
	if len(merged.Characters) != 1 {
		t.Fatalf("expected textless records to collapse, got %d characters", len(merged.Characters))
	}
	if merged.Characters[0].Name != "Voice One" {
		t.Errorf("first record should absorb, got %q", merged.Characters[0].Name)
	}
}

func TestFoldSchemaCompletion(t *testing.T) {
	m := NewMerger()
	merged := m.Fold(state.Narrative{}, state.Narrative{})
	if merged.Characters == nil || merged.Locations == nil || merged.Items == nil ||
		merged.Events == nil || merged.Relations == nil || merged.Unresolved == nil {
		t.Error("folded state must be schema-complete: no nil sequences")
	}
}
