package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"narrative-agent/pipeline"
	"narrative-agent/state"

	"github.com/google/uuid"
)

func sampleResult() *pipeline.Result {
	order := state.EventOrder(1)
	return &pipeline.Result{
		RunID:       uuid.New(),
		DocID:       "demo",
		TotalChunks: 2,
		State: state.Narrative{
			Characters: []state.Character{{
				ID: "char_01", Name: "Ana", Aliases: []string{"A", "Annie"},
				Role: "seeker", FirstAppearance: "L3-L5",
				Description: "the protagonist", Confidence: 0.8,
			}},
			Locations: []state.Location{{ID: "loc_01", Name: "Ruin", Type: "site"}},
			Items:     []state.Item{{ID: "item_01", Name: "prize", Category: "artifact"}},
			Events: []state.Event{
				{ID: "ev_01", Order: &order, Title: "arrival", Actors: []string{"char_01"},
					Summary: "Ana arrives", EvidenceSpan: "L3", Confidence: 0.7},
				{ID: "ev_02", Title: "unplaced aside"},
			},
			Relations:  []state.Relation{{ID: "rel_01", Subject: "char_01", Predicate: "seeks", Object: "item_01"}},
			Unresolved: []state.Unresolved{{Question: "Who set the trap?", Hypotheses: []string{"a warden", "nobody"}}},
		},
		SummaryEN: "Ana seeks the prize.",
	}
}

func TestWriteAll(t *testing.T) {
	outDir := t.TempDir()
	jsonPath, err := WriteAll(sampleResult(), outDir)
	if err != nil {
		t.Fatal(err)
	}

	if filepath.Base(jsonPath) != "demo_final.json" {
		t.Errorf("json path = %q", jsonPath)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded pipeline.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("final json does not decode: %v", err)
	}
	if decoded.DocID != "demo" || decoded.SummaryEN != "Ana seeks the prize." {
		t.Errorf("decoded = %+v", decoded)
	}

	for _, name := range []string{"Characters", "Locations", "Items", "Events", "Relations", "Unresolved"} {
		if _, err := os.Stat(filepath.Join(outDir, name+".csv")); err != nil {
			t.Errorf("missing %s.csv: %v", name, err)
		}
	}
}

func TestWriteAllCharacterColumns(t *testing.T) {
	outDir := t.TempDir()
	if _, err := WriteAll(sampleResult(), outDir); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(outDir, "Characters.csv"))
	wantHeader := []string{"id", "name", "aliases", "role", "first_appearance", "description", "confidence"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Errorf("header = %v, want %v", rows[0], wantHeader)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one record", len(rows))
	}
	want := []string{"char_01", "Ana", "A; Annie", "seeker", "L3-L5", "the protagonist", "0.8"}
	if !reflect.DeepEqual(rows[1], want) {
		t.Errorf("row = %v, want %v", rows[1], want)
	}
}

func TestWriteAllEventOrderColumn(t *testing.T) {
	outDir := t.TempDir()
	if _, err := WriteAll(sampleResult(), outDir); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, filepath.Join(outDir, "Events.csv"))
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus two events", len(rows))
	}
	if rows[1][1] != "1" {
		t.Errorf("sequenced event order column = %q, want \"1\"", rows[1][1])
	}
	if rows[2][1] != "" {
		t.Errorf("order-less event must export an empty order, got %q", rows[2][1])
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}
