package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"narrative-agent/state"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CharacterAlias maps a merged character's canonical name to the alias
// strings collected across chunks.
type CharacterAlias struct {
	RunID         uuid.UUID `json:"run_id"`
	CanonicalName string    `json:"canonical_name"`
	Aliases       []string  `json:"aliases"`
}

func indexAliases(ctx context.Context, tx *sql.Tx, runID uuid.UUID, characters []state.Character) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM character_aliases WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("failed to clear prior aliases: %w", err)
	}

	query := `
        INSERT INTO character_aliases (run_id, canonical_name, aliases)
        VALUES ($1, $2, $3)
    `
	for _, c := range characters {
		if c.Name == "" || len(c.Aliases) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, query, runID, c.Name, pq.Array(c.Aliases)); err != nil {
			return fmt.Errorf("failed to insert aliases for %q: %w", c.Name, err)
		}
	}
	return nil
}

// ListAliases returns every alias mapping for one run.
func (g *Graph) ListAliases(ctx context.Context, runID uuid.UUID) ([]CharacterAlias, error) {
	if !g.Enabled() {
		return nil, nil
	}
	rows, err := g.db.QueryContext(ctx, `
        SELECT run_id, canonical_name, aliases
        FROM character_aliases
        WHERE run_id = $1
    `, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aliases: %w", err)
	}
	defer rows.Close()

	var out []CharacterAlias
	for rows.Next() {
		var a CharacterAlias
		if err := rows.Scan(&a.RunID, &a.CanonicalName, pq.Array(&a.Aliases)); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveName maps an alias back to the canonical character name for a run.
// A name with no alias row resolves to itself.
func (g *Graph) ResolveName(ctx context.Context, runID uuid.UUID, name string) (string, error) {
	if !g.Enabled() {
		return name, nil
	}
	var canonical string
	err := g.db.QueryRowContext(ctx, `
        SELECT canonical_name
        FROM character_aliases
        WHERE run_id = $1 AND (canonical_name = $2 OR $2 = ANY(aliases))
        LIMIT 1
    `, runID, name).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return name, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve name: %w", err)
	}
	return canonical, nil
}
