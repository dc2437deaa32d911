package graph

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// touchMetadata upserts the per-run index record so operators can tell how
// fresh the derived graph is relative to the archived state.
func touchMetadata(ctx context.Context, tx *sql.Tx, runID uuid.UUID, edgeCount int) error {
	query := `
        INSERT INTO graph_metadata (run_id, edge_count, last_indexed_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (run_id)
        DO UPDATE SET edge_count = EXCLUDED.edge_count, last_indexed_at = EXCLUDED.last_indexed_at
    `
	_, err := tx.ExecContext(ctx, query, runID, edgeCount)
	return err
}
