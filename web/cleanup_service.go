package web

import (
	"context"
	"time"

	"narrative-agent/database"

	"go.uber.org/zap"
)

// RetentionService prunes archived extraction runs past their retention age.
// Deleting a run cascades to its character rows and graph index.
type RetentionService struct {
	store  *database.PostgresStore
	logger *zap.Logger
}

func NewRetentionService(store *database.PostgresStore, logger *zap.Logger) *RetentionService {
	return &RetentionService{
		store:  store,
		logger: logger,
	}
}

// PruneOldRuns deletes runs created before now minus maxAge and returns the
// number of runs removed.
func (rs *RetentionService) PruneOldRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	deleted, err := rs.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		rs.logger.Info("Pruned archived extraction runs",
			zap.Int64("runs_deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// Start runs the prune loop until the context is cancelled. One pass runs
// immediately so a long-stopped server catches up on startup.
func (rs *RetentionService) Start(ctx context.Context, interval, maxAge time.Duration) {
	rs.logger.Info("Starting run retention service",
		zap.Duration("interval", interval),
		zap.Duration("max_age", maxAge))

	if _, err := rs.PruneOldRuns(ctx, maxAge); err != nil {
		rs.logger.Error("Run retention pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := rs.PruneOldRuns(ctx, maxAge); err != nil {
				rs.logger.Error("Run retention pass failed", zap.Error(err))
			}
		case <-ctx.Done():
			rs.logger.Info("Stopping run retention service")
			return
		}
	}
}
