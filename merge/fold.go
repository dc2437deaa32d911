package merge

import "narrative-agent/state"

// Default thresholds, matching the knobs exposed through configuration.
const (
	DefaultEntityThreshold = 0.7
	DefaultEventThreshold  = 0.6
)

// Merger folds per-chunk partial states into an accumulated canonical state.
// It is a pure value type: Fold performs no I/O and mutates neither input
// beyond schema completion, so the caller owns all sequencing.
type Merger struct {
	EntityThreshold float64
	EventThreshold  float64
}

func NewMerger() *Merger {
	return &Merger{
		EntityThreshold: DefaultEntityThreshold,
		EventThreshold:  DefaultEventThreshold,
	}
}

// Fold reconciles one observed partial state into the accumulated state and
// returns the new canonical state. Missing sequences on either side are
// treated as empty, never as an error.
func (m *Merger) Fold(accumulated, observed state.Narrative) state.Narrative {
	accumulated.Complete()
	observed.Complete()

	merged := state.Narrative{
		Characters: mergeEntities(accumulated.Characters, observed.Characters,
			characterKeys, characterSimTexts, m.EntityThreshold, reconcileCharacter),
		Locations: mergeEntities(accumulated.Locations, observed.Locations,
			locationKeys, locationSimTexts, m.EntityThreshold, reconcileLocation),
		Items: mergeEntities(accumulated.Items, observed.Items,
			itemKeys, itemSimTexts, m.EntityThreshold, reconcileItem),
		Events:     m.mergeEvents(accumulated.Events, observed.Events),
		Relations:  dedupeRelations(accumulated.Relations, observed.Relations),
		Unresolved: dedupeUnresolved(accumulated.Unresolved, observed.Unresolved),
	}
	merged.Complete()
	return merged
}

func characterKeys(c state.Character) []string     { return []string{c.Name} }
func characterSimTexts(c state.Character) []string { return []string{c.Description, c.Role} }

func locationKeys(l state.Location) []string     { return []string{l.Name, l.Type} }
func locationSimTexts(l state.Location) []string { return []string{l.Description} }

func itemKeys(i state.Item) []string     { return []string{i.Name, i.Category} }
func itemSimTexts(i state.Item) []string { return []string{i.Description} }
