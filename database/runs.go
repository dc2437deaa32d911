package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"narrative-agent/pipeline"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RunSummary is the archive view of one completed extraction run.
type RunSummary struct {
	ID          uuid.UUID `json:"id"`
	DocID       string    `json:"doc_id"`
	TotalChunks int       `json:"total_chunks"`
	SummaryEN   string    `json:"summary_en"`
	CreatedAt   time.Time `json:"created_at"`
}

// SaveRun archives a completed run: the full merged state as JSONB plus one
// row per merged character for direct querying.
func (s *PostgresStore) SaveRun(ctx context.Context, result *pipeline.Result) error {
	stateJSON, err := json.Marshal(result.State)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin run transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO extraction_runs (id, doc_id, total_chunks, summary_en, state)
        VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := tx.ExecContext(ctx, query,
		result.RunID, result.DocID, result.TotalChunks, result.SummaryEN, stateJSON); err != nil {
		return fmt.Errorf("failed to insert extraction run: %w", err)
	}

	charQuery := `
        INSERT INTO run_characters (run_id, name, aliases, role, first_appearance, description, confidence)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	for _, c := range result.State.Characters {
		aliases := c.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		if _, err := tx.ExecContext(ctx, charQuery,
			result.RunID, c.Name, pq.Array(aliases), c.Role,
			c.FirstAppearance, c.Description, float64(c.Confidence)); err != nil {
			return fmt.Errorf("failed to insert run character %q: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent archived runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, doc_id, total_chunks, summary_en, created_at
        FROM extraction_runs
        ORDER BY created_at DESC
        LIMIT $1
    `
	rows, err := s.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var run RunSummary
		if err := rows.Scan(&run.ID, &run.DocID, &run.TotalChunks, &run.SummaryEN, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRunState fetches the archived merged state for one run.
func (s *PostgresStore) GetRunState(ctx context.Context, runID uuid.UUID) (json.RawMessage, error) {
	var stateJSON []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT state FROM extraction_runs WHERE id = $1`, runID).Scan(&stateJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch run state: %w", err)
	}
	return stateJSON, nil
}

// DeleteRunsBefore removes archived runs created before the cutoff. Character
// rows and graph index entries go with them via ON DELETE CASCADE.
func (s *PostgresStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM extraction_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired runs: %w", err)
	}
	return res.RowsAffected()
}
