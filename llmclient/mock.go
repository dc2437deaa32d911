package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"narrative-agent/state"
)

// Mock is a deterministic offline oracle. It pattern-matches the chunk text
// in the user prompt and fabricates a plausible extraction, which makes full
// pipeline runs possible without a model server.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

var (
	mockDocID   = regexp.MustCompile(`doc_id:\s*(.+)`)
	mockChunkID = regexp.MustCompile(`chunk_id:\s*(\d+)`)
	mockSpan    = regexp.MustCompile(`chunk_span:\s*(.+)`)
	mockText    = regexp.MustCompile(`(?s)\[TEXT_CHUNK\]\n(.*)\z`)

	mockRuin    = regexp.MustCompile(`(?i)(ancient\s+roman\s+ruin|roman\s+ruins)`)
	mockPrize   = regexp.MustCompile(`(?i)prize|award|trophy`)
	mockPronoun = regexp.MustCompile(`(?i)\bsomeone\b|\bhe\b|\bshe\b`)
	mockClue    = regexp.MustCompile(`(?i)clue|puzzle|trap`)
)

func (m *Mock) Infer(_ context.Context, _ string, userPrompt string) (string, error) {
	docID := firstGroup(mockDocID, userPrompt, "demo")
	span := firstGroup(mockSpan, userPrompt, "L1-L999")
	chunkText := ""
	if mt := mockText.FindStringSubmatch(userPrompt); mt != nil {
		chunkText = strings.TrimSpace(mt[1])
	}
	chunkID := 0
	if mc := mockChunkID.FindStringSubmatch(userPrompt); mc != nil {
		chunkID, _ = strconv.Atoi(mc[1])
	}

	conf := func(v float64) state.Confidence { return state.Confidence(v) }

	characters := []state.Character{{
		ID:              fmt.Sprintf("char_%03d_01", chunkID),
		Name:            "Unknown Character #1",
		Aliases:         []string{},
		Role:            "seeker",
		FirstAppearance: span,
		Description:     "The person trying to obtain the prize",
		Confidence:      conf(0.55),
	}}
	if mockPronoun.MatchString(chunkText) {
		characters = append(characters, state.Character{
			ID:              fmt.Sprintf("char_%03d_02", chunkID),
			Name:            "Unknown Character #2",
			Aliases:         []string{},
			Role:            "prize holder",
			FirstAppearance: span,
			Description:     "The person being persuaded to give the prize",
			Confidence:      conf(0.5),
		})
	}

	var locations []state.Location
	if mockRuin.MatchString(chunkText) {
		locations = append(locations, state.Location{
			ID:              fmt.Sprintf("loc_%03d", chunkID),
			Name:            "Ancient Roman Ruin",
			Type:            "site",
			FirstAppearance: span,
			Description:     "Story location",
			Confidence:      conf(0.9),
		})
	}

	var items []state.Item
	if mockPrize.MatchString(chunkText) {
		items = append(items, state.Item{
			ID:              fmt.Sprintf("item_%03d", chunkID),
			Name:            "special prize",
			Category:        "artifact",
			FirstAppearance: span,
			Confidence:      conf(0.6),
		})
	}

	var events []state.Event
	if mockClue.MatchString(chunkText) {
		order := state.EventOrder(chunkID + 1)
		ev := state.Event{
			ID:           fmt.Sprintf("ev_%03d", chunkID),
			Order:        &order,
			Title:        "Solve clues to pass the trap",
			Actors:       []string{characters[0].ID},
			Summary:      "The seeker must decipher clues to pass a trap and approach the prize.",
			EvidenceSpan: span,
			Confidence:   conf(0.8),
		}
		if len(locations) > 0 {
			ev.Location = locations[0].ID
		}
		events = append(events, ev)
	}

	var relations []state.Relation
	if len(items) > 0 && len(locations) > 0 {
		relations = append(relations, state.Relation{
			ID:           fmt.Sprintf("rel_%03d", chunkID),
			Subject:      items[0].ID,
			Predicate:    "located_in",
			Object:       locations[0].ID,
			EvidenceSpan: span,
			Confidence:   conf(0.5),
		})
	}

	var unresolved []state.Unresolved
	if len(characters) > 1 {
		unresolved = append(unresolved, state.Unresolved{
			Question:     "Who is holding the prize?",
			Hypotheses:   []string{"a guardian", "a site warden", "the puzzle setter"},
			EvidenceSpan: span,
		})
	}

	extraction := state.ChunkExtraction{
		DocID:   docID,
		ChunkID: chunkID,
		State: state.Narrative{
			Characters: characters,
			Locations:  locations,
			Items:      items,
			Events:     events,
			Relations:  relations,
			Unresolved: unresolved,
		},
		SummaryEN: "This chunk introduces a seeker aiming for a special prize, " +
			"hints of clues inscribed on walls, and a trap that must be bypassed, " +
			"likely within an ancient Roman ruin.",
		NormalizedNotes: []string{
			"No explicit names provided; temporary 'Unknown Character #' labels used.",
			"Use the exact site name from text whenever available.",
		},
	}
	extraction.State.Complete()

	out, err := json.Marshal(extraction)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func firstGroup(re *regexp.Regexp, s, fallback string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		line := strings.TrimSpace(m[1])
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		if line != "" {
			return line
		}
	}
	return fallback
}
