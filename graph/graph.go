// Package graph maintains a queryable index of narrative relationships on top
// of the run archive. The archived state JSONB remains the source of truth;
// the graph is derived from it per run and can always be rebuilt.
package graph

import (
	"database/sql"

	"go.uber.org/zap"
)

type Graph struct {
	db      *sql.DB
	logger  *zap.Logger
	enabled bool
}

// New creates a Graph over the archive database connection.
// If enabled is false, all operations no-op gracefully.
func New(db *sql.DB, logger *zap.Logger, enabled bool) *Graph {
	return &Graph{
		db:      db,
		logger:  logger,
		enabled: enabled,
	}
}

// Enabled returns whether graph indexing is active.
func (g *Graph) Enabled() bool {
	return g != nil && g.enabled && g.db != nil
}
