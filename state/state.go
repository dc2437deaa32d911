// Package state defines the narrative record types accumulated across chunk
// extractions. Records are produced by an untrusted oracle, so every numeric
// field decodes leniently (see coerce.go) and absent sequences are tolerated.
package state

// Character is a person or agent observed in the narrative.
type Character struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Aliases         []string   `json:"aliases,omitempty"`
	Role            string     `json:"role,omitempty"`
	FirstAppearance string     `json:"first_appearance,omitempty"`
	Description     string     `json:"description,omitempty"`
	Confidence      Confidence `json:"confidence,omitempty"`
}

// Location is a named place.
type Location struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Type            string     `json:"type,omitempty"`
	FirstAppearance string     `json:"first_appearance,omitempty"`
	Description     string     `json:"description,omitempty"`
	Confidence      Confidence `json:"confidence,omitempty"`
}

// Item is a physical or abstract object of narrative significance.
type Item struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Category        string     `json:"category,omitempty"`
	FirstAppearance string     `json:"first_appearance,omitempty"`
	Description     string     `json:"description,omitempty"`
	Confidence      Confidence `json:"confidence,omitempty"`
}

// Event is a plot occurrence with a document-relative ordering hint.
// Order is a pointer so that "oracle gave no order" is distinguishable from
// an explicit order of zero.
type Event struct {
	ID           string      `json:"id"`
	Order        *EventOrder `json:"order,omitempty"`
	Title        string      `json:"title,omitempty"`
	Actors       []string    `json:"actors,omitempty"`
	Location     string      `json:"location,omitempty"`
	ISOTime      string      `json:"iso_time,omitempty"`
	RelativeTime string      `json:"relative_time,omitempty"`
	Summary      string      `json:"summary,omitempty"`
	EvidenceSpan string      `json:"evidence_span,omitempty"`
	Confidence   Confidence  `json:"confidence,omitempty"`
}

// OrderRank returns the sortable order value, with the unknown sentinel for
// events the oracle never sequenced.
func (e Event) OrderRank() int64 {
	if e.Order == nil {
		return UnknownRank
	}
	return int64(*e.Order)
}

// Relation is a (subject, predicate, object) triple between identifiers or
// free-text references.
type Relation struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	Predicate    string     `json:"predicate"`
	Object       string     `json:"object"`
	EvidenceSpan string     `json:"evidence_span,omitempty"`
	Confidence   Confidence `json:"confidence,omitempty"`
}

// Unresolved is an open question the oracle could not settle from the text.
type Unresolved struct {
	Question     string   `json:"question"`
	Hypotheses   []string `json:"hypotheses,omitempty"`
	EvidenceSpan string   `json:"evidence_span,omitempty"`
}

// Narrative is the aggregate state for one document: six sequences, one per
// record kind. The accumulated instance is the only long-lived object in a
// run; per-chunk instances are folded into it and discarded.
type Narrative struct {
	Characters []Character  `json:"characters"`
	Locations  []Location   `json:"locations"`
	Items      []Item       `json:"items"`
	Events     []Event      `json:"events"`
	Relations  []Relation   `json:"relations"`
	Unresolved []Unresolved `json:"unresolved"`
}

// Complete replaces nil sequences with empty ones so the state is always
// schema-complete: a missing category from the oracle is an empty category,
// never an error, and serialized output never contains null arrays.
func (n *Narrative) Complete() {
	if n.Characters == nil {
		n.Characters = []Character{}
	}
	if n.Locations == nil {
		n.Locations = []Location{}
	}
	if n.Items == nil {
		n.Items = []Item{}
	}
	if n.Events == nil {
		n.Events = []Event{}
	}
	if n.Relations == nil {
		n.Relations = []Relation{}
	}
	if n.Unresolved == nil {
		n.Unresolved = []Unresolved{}
	}
}

// ChunkExtraction is the full object the oracle returns for one chunk.
type ChunkExtraction struct {
	DocID           string    `json:"doc_id"`
	ChunkID         int       `json:"chunk_id"`
	State           Narrative `json:"state"`
	SummaryEN       string    `json:"summary_en"`
	NormalizedNotes []string  `json:"normalized_notes"`
}
