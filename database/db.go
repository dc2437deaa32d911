package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	log.Println("Successfully connected to the database")
	return &PostgresStore{DB: db}, nil
}

// EnsureSchema creates the required tables if they do not already exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS extraction_runs (
            id UUID PRIMARY KEY,
            doc_id TEXT NOT NULL,
            total_chunks INT NOT NULL,
            summary_en TEXT DEFAULT '',
            state JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_extraction_runs_doc_id ON extraction_runs(doc_id)`,
		`CREATE INDEX IF NOT EXISTS idx_extraction_runs_created_at ON extraction_runs(created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS run_characters (
            run_id UUID REFERENCES extraction_runs(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            aliases TEXT[] DEFAULT '{}'::TEXT[],
            role TEXT DEFAULT '',
            first_appearance TEXT DEFAULT '',
            description TEXT DEFAULT '',
            confidence DOUBLE PRECISION DEFAULT 0
        )`,
		`CREATE INDEX IF NOT EXISTS idx_run_characters_run_id ON run_characters(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
