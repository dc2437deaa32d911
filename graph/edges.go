package graph

import (
	"context"
	"fmt"

	"narrative-agent/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Edge is one directed relationship between two narrative references.
// Source distinguishes where the edge came from: "relation" for explicit
// (subject, predicate, object) triples, "event" for actor participation
// derived from merged events.
type Edge struct {
	RunID        uuid.UUID `json:"run_id"`
	Subject      string    `json:"subject"`
	Predicate    string    `json:"predicate"`
	Object       string    `json:"object"`
	Source       string    `json:"source"`
	EvidenceSpan string    `json:"evidence_span,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
}

// EnsureSchema creates the graph tables if they do not already exist.
func (g *Graph) EnsureSchema(ctx context.Context) error {
	if !g.Enabled() {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS narrative_edges (
            run_id UUID REFERENCES extraction_runs(id) ON DELETE CASCADE,
            subject TEXT NOT NULL,
            predicate TEXT NOT NULL,
            object TEXT NOT NULL,
            source TEXT NOT NULL,
            evidence_span TEXT DEFAULT '',
            confidence DOUBLE PRECISION DEFAULT 0
        )`,
		`CREATE INDEX IF NOT EXISTS idx_narrative_edges_run_id ON narrative_edges(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_narrative_edges_subject ON narrative_edges(run_id, subject)`,
		`CREATE TABLE IF NOT EXISTS character_aliases (
            run_id UUID REFERENCES extraction_runs(id) ON DELETE CASCADE,
            canonical_name TEXT NOT NULL,
            aliases TEXT[] DEFAULT '{}'::TEXT[]
        )`,
		`CREATE INDEX IF NOT EXISTS idx_character_aliases_run_id ON character_aliases(run_id)`,
		`CREATE TABLE IF NOT EXISTS graph_metadata (
            run_id UUID PRIMARY KEY REFERENCES extraction_runs(id) ON DELETE CASCADE,
            edge_count INT DEFAULT 0,
            last_indexed_at TIMESTAMPTZ DEFAULT NOW()
        )`,
	}
	for _, stmt := range stmts {
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute graph schema statement: %w", err)
		}
	}
	return nil
}

// IndexRun derives edges and alias rows from a merged state and replaces any
// prior index for the run. Indexing failures never fail the run itself; the
// caller logs and moves on.
func (g *Graph) IndexRun(ctx context.Context, runID uuid.UUID, ns state.Narrative) error {
	if !g.Enabled() {
		return nil
	}

	edges := deriveEdges(runID, ns)

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin graph transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM narrative_edges WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to clear prior edges: %w", err)
	}

	query := `
        INSERT INTO narrative_edges (run_id, subject, predicate, object, source, evidence_span, confidence)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx, query,
			e.RunID, e.Subject, e.Predicate, e.Object, e.Source, e.EvidenceSpan, e.Confidence); err != nil {
			return fmt.Errorf("failed to insert edge %s-%s->%s: %w", e.Subject, e.Predicate, e.Object, err)
		}
	}

	if err := indexAliases(ctx, tx, runID, ns.Characters); err != nil {
		return err
	}
	if err := touchMetadata(ctx, tx, runID, len(edges)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	g.logger.Debug("Indexed narrative graph",
		zap.String("run_id", runID.String()),
		zap.Int("edges", len(edges)))
	return nil
}

// deriveEdges flattens a merged state into directed edges: one per relation
// triple, plus one participation edge per (actor, event) pair.
func deriveEdges(runID uuid.UUID, ns state.Narrative) []Edge {
	var edges []Edge
	for _, rel := range ns.Relations {
		if rel.Subject == "" || rel.Object == "" {
			continue
		}
		edges = append(edges, Edge{
			RunID:        runID,
			Subject:      rel.Subject,
			Predicate:    rel.Predicate,
			Object:       rel.Object,
			Source:       "relation",
			EvidenceSpan: rel.EvidenceSpan,
			Confidence:   float64(rel.Confidence),
		})
	}
	for _, ev := range ns.Events {
		target := ev.ID
		if target == "" {
			target = ev.Title
		}
		if target == "" {
			continue
		}
		for _, actor := range ev.Actors {
			if actor == "" {
				continue
			}
			edges = append(edges, Edge{
				RunID:        runID,
				Subject:      actor,
				Predicate:    "participates_in",
				Object:       target,
				Source:       "event",
				EvidenceSpan: ev.EvidenceSpan,
				Confidence:   float64(ev.Confidence),
			})
		}
	}
	return edges
}

// ListEdges returns every indexed edge for one run.
func (g *Graph) ListEdges(ctx context.Context, runID uuid.UUID) ([]Edge, error) {
	if !g.Enabled() {
		return nil, nil
	}
	rows, err := g.db.QueryContext(ctx, `
        SELECT run_id, subject, predicate, object, source, evidence_span, confidence
        FROM narrative_edges
        WHERE run_id = $1
    `, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.RunID, &e.Subject, &e.Predicate, &e.Object,
			&e.Source, &e.EvidenceSpan, &e.Confidence); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Neighbors returns edges touching a reference in either direction.
func (g *Graph) Neighbors(ctx context.Context, runID uuid.UUID, ref string) ([]Edge, error) {
	if !g.Enabled() {
		return nil, nil
	}
	rows, err := g.db.QueryContext(ctx, `
        SELECT run_id, subject, predicate, object, source, evidence_span, confidence
        FROM narrative_edges
        WHERE run_id = $1 AND (subject = $2 OR object = $2)
    `, runID, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query neighbors: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.RunID, &e.Subject, &e.Predicate, &e.Object,
			&e.Source, &e.EvidenceSpan, &e.Confidence); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
