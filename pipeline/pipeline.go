// Package pipeline drives one document through chunking, oracle extraction,
// and the incremental state fold. Processing is strictly sequential: each
// chunk's prompt embeds the state folded from every previous chunk, so there
// is no safe parallelism within a document.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"narrative-agent/config"
	apperrors "narrative-agent/errors"
	"narrative-agent/extract"
	"narrative-agent/merge"
	"narrative-agent/prompts"
	"narrative-agent/state"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Oracle is the external extraction collaborator: one prompt in, raw model
// text out. Implementations own transport concerns (retries, backoff,
// timeouts); the pipeline owns recovering a structured object from the text.
type Oracle interface {
	Infer(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result is the outcome of a completed document run.
type Result struct {
	RunID       uuid.UUID       `json:"run_id"`
	DocID       string          `json:"doc_id"`
	TotalChunks int             `json:"total_chunks"`
	State       state.Narrative `json:"state"`
	SummaryEN   string          `json:"summary_en"`
}

type Pipeline struct {
	cfg    *config.Config
	oracle Oracle
	merger *merge.Merger
	logger *zap.Logger
}

func New(cfg *config.Config, oracle Oracle, logger *zap.Logger) *Pipeline {
	merger := merge.NewMerger()
	if cfg.EntitySimThreshold > 0 {
		merger.EntityThreshold = cfg.EntitySimThreshold
	}
	if cfg.EventSimThreshold > 0 {
		merger.EventThreshold = cfg.EventSimThreshold
	}
	return &Pipeline{
		cfg:    cfg,
		oracle: oracle,
		merger: merger,
		logger: logger,
	}
}

// Run processes one document end to end and returns the final accumulated
// state. A chunk whose oracle output never yields a parseable object within
// the retry budget fails the whole run; there are no silent partial results.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*Result, error) {
	fullText, err := p.ReadDocument(inputPath)
	if err != nil {
		return nil, err
	}
	return p.RunText(ctx, docIDFromPath(inputPath), fullText)
}

// RunText is Run for already-loaded text, used by the upload API.
func (p *Pipeline) RunText(ctx context.Context, docID, fullText string) (*Result, error) {
	chunks, err := p.segment(fullText)
	if err != nil {
		return nil, fmt.Errorf("segment document: %w", err)
	}
	p.logger.Info("Document segmented",
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Int("characters", len([]rune(fullText))))

	accumulated := state.Narrative{}
	accumulated.Complete()
	lastSummary := ""

	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		extraction, err := p.extractChunk(ctx, docID, i, len(chunks), chunk, accumulated)
		if err != nil {
			return nil, err
		}

		extraction.State.Complete()
		accumulated = p.merger.Fold(accumulated, extraction.State)
		if extraction.SummaryEN != "" {
			lastSummary = extraction.SummaryEN
		}

		p.logger.Info("Chunk processed",
			zap.String("doc_id", docID),
			zap.Int("chunk", i+1),
			zap.Int("total", len(chunks)))
	}

	return &Result{
		RunID:       uuid.New(),
		DocID:       docID,
		TotalChunks: len(chunks),
		State:       accumulated,
		SummaryEN:   lastSummary,
	}, nil
}

func (p *Pipeline) segment(fullText string) ([]Chunk, error) {
	if p.cfg.SentenceChunking {
		return SegmentSentences(fullText, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	}
	return SegmentText(fullText, p.cfg.ChunkSize, p.cfg.ChunkOverlap), nil
}

// extractChunk prompts the oracle for one chunk and retries until a valid
// extraction object is recovered or the retry budget is exhausted.
func (p *Pipeline) extractChunk(ctx context.Context, docID string, chunkID, totalChunks int, chunk Chunk, accumulated state.Narrative) (*state.ChunkExtraction, error) {
	previousState, err := json.Marshal(accumulated)
	if err != nil {
		return nil, fmt.Errorf("marshal accumulated state: %w", err)
	}

	userPrompt, err := prompts.BuildChunkPrompt(prompts.ChunkPrompt{
		DocID:         docID,
		ChunkID:       chunkID,
		TotalChunks:   totalChunks,
		ChunkSpan:     fmt.Sprintf("char[%d:%d]", chunk.Start, chunk.End),
		PreviousState: string(previousState),
		ChunkText:     chunk.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("build chunk prompt: %w", err)
	}

	attempts := p.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	lastRaw := ""
	for attempt := 0; attempt < attempts; attempt++ {
		raw, err := p.oracle.Infer(ctx, prompts.ExtractionSystem(), userPrompt)
		if err != nil {
			return nil, apperrors.WrapErrorf(err, "chunk %d oracle call", chunkID)
		}
		lastRaw = raw

		object, ok := extract.FirstObject(raw)
		if !ok {
			p.logger.Warn("No JSON object in oracle output, retrying",
				zap.Int("chunk", chunkID),
				zap.Int("attempt", attempt+1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.RetryDelaySeconds):
			}
			continue
		}

		extraction, err := decodeExtraction(object)
		if err != nil {
			return nil, apperrors.WrapErrorf(err, "chunk %d", chunkID)
		}
		return extraction, nil
	}

	return nil, apperrors.WrapErrorf(apperrors.ErrNoJSONObject,
		"chunk %d: oracle produced no parseable object after %d attempts; last output: %q",
		chunkID, attempts, extract.Truncate(lastRaw, 1000))
}

// decodeExtraction decodes an oracle object, requiring a state field to be
// present. Missing sequences inside the state are tolerated, as are malformed
// metadata fields; a missing or undecodable state means the oracle answered
// something else entirely.
func decodeExtraction(object json.RawMessage) (*state.ChunkExtraction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(object, &fields); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInvalidExtraction, err.Error())
	}
	rawState, ok := fields["state"]
	if !ok {
		return nil, apperrors.WrapError(apperrors.ErrInvalidExtraction, "object has no state field")
	}

	extraction := &state.ChunkExtraction{}
	if err := json.Unmarshal(rawState, &extraction.State); err != nil {
		return nil, apperrors.WrapError(apperrors.ErrInvalidExtraction, err.Error())
	}
	// Metadata fields are best-effort; a mistyped chunk_id must not fail a
	// chunk whose state is usable.
	if raw, ok := fields["doc_id"]; ok {
		_ = json.Unmarshal(raw, &extraction.DocID)
	}
	if raw, ok := fields["chunk_id"]; ok {
		_ = json.Unmarshal(raw, &extraction.ChunkID)
	}
	if raw, ok := fields["summary_en"]; ok {
		_ = json.Unmarshal(raw, &extraction.SummaryEN)
	}
	if raw, ok := fields["normalized_notes"]; ok {
		_ = json.Unmarshal(raw, &extraction.NormalizedNotes)
	}
	return extraction, nil
}

func docIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
