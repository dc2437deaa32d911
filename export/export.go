// Package export writes a completed run to disk: one JSON record with the
// merged state, and one flat CSV per record category.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"narrative-agent/pipeline"
	"narrative-agent/state"
)

// WriteAll writes <doc_id>_final.json plus the six category CSVs into outDir,
// creating the directory when needed. It returns the path of the JSON file.
func WriteAll(result *pipeline.Result, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	jsonPath := filepath.Join(outDir, result.DocID+"_final.json")
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal final state: %w", err)
	}
	if err := os.WriteFile(jsonPath, payload, 0o644); err != nil {
		return "", fmt.Errorf("write final json: %w", err)
	}

	if err := writeCSVs(result.State, outDir); err != nil {
		return "", err
	}
	return jsonPath, nil
}

func writeCSVs(ns state.Narrative, outDir string) error {
	tables := []struct {
		name    string
		headers []string
		rows    [][]string
	}{
		{"Characters",
			[]string{"id", "name", "aliases", "role", "first_appearance", "description", "confidence"},
			characterRows(ns.Characters)},
		{"Locations",
			[]string{"id", "name", "type", "first_appearance", "description", "confidence"},
			locationRows(ns.Locations)},
		{"Items",
			[]string{"id", "name", "category", "first_appearance", "description", "confidence"},
			itemRows(ns.Items)},
		{"Events",
			[]string{"id", "order", "title", "actors", "location", "iso_time", "relative_time", "summary", "evidence_span", "confidence"},
			eventRows(ns.Events)},
		{"Relations",
			[]string{"id", "subject", "predicate", "object", "evidence_span", "confidence"},
			relationRows(ns.Relations)},
		{"Unresolved",
			[]string{"question", "hypotheses", "evidence_span"},
			unresolvedRows(ns.Unresolved)},
	}

	for _, table := range tables {
		if err := writeCSV(filepath.Join(outDir, table.name+".csv"), table.headers, table.rows); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write %s header: %w", filepath.Base(path), err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write %s row: %w", filepath.Base(path), err)
		}
	}
	w.Flush()
	return w.Error()
}

func characterRows(cs []state.Character) [][]string {
	rows := make([][]string, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, []string{
			c.ID, c.Name, joinList(c.Aliases), c.Role,
			c.FirstAppearance, c.Description, formatConfidence(c.Confidence),
		})
	}
	return rows
}

func locationRows(ls []state.Location) [][]string {
	rows := make([][]string, 0, len(ls))
	for _, l := range ls {
		rows = append(rows, []string{
			l.ID, l.Name, l.Type, l.FirstAppearance, l.Description, formatConfidence(l.Confidence),
		})
	}
	return rows
}

func itemRows(is []state.Item) [][]string {
	rows := make([][]string, 0, len(is))
	for _, i := range is {
		rows = append(rows, []string{
			i.ID, i.Name, i.Category, i.FirstAppearance, i.Description, formatConfidence(i.Confidence),
		})
	}
	return rows
}

func eventRows(es []state.Event) [][]string {
	rows := make([][]string, 0, len(es))
	for _, e := range es {
		order := ""
		if e.Order != nil {
			order = strconv.FormatInt(int64(*e.Order), 10)
		}
		rows = append(rows, []string{
			e.ID, order, e.Title, joinList(e.Actors), e.Location,
			e.ISOTime, e.RelativeTime, e.Summary, e.EvidenceSpan, formatConfidence(e.Confidence),
		})
	}
	return rows
}

func relationRows(rs []state.Relation) [][]string {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		rows = append(rows, []string{
			r.ID, r.Subject, r.Predicate, r.Object, r.EvidenceSpan, formatConfidence(r.Confidence),
		})
	}
	return rows
}

func unresolvedRows(us []state.Unresolved) [][]string {
	rows := make([][]string, 0, len(us))
	for _, u := range us {
		rows = append(rows, []string{u.Question, joinList(u.Hypotheses), u.EvidenceSpan})
	}
	return rows
}

func joinList(items []string) string {
	return strings.Join(items, "; ")
}

func formatConfidence(c state.Confidence) string {
	return strconv.FormatFloat(float64(c), 'g', -1, 64)
}
