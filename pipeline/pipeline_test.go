package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"narrative-agent/config"
	apperrors "narrative-agent/errors"
	"narrative-agent/llmclient"

	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxRetries:         2,
		RetryDelaySeconds:  time.Millisecond,
		ChunkSize:          1000,
		ChunkOverlap:       100,
		EntitySimThreshold: 0.7,
		EventSimThreshold:  0.6,
	}
}

// oracleFunc adapts a function to the Oracle interface for test stubs.
type oracleFunc func(ctx context.Context, system, user string) (string, error)

func (f oracleFunc) Infer(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

const storyText = "Someone guards the special prize deep inside the ancient Roman ruin. " +
	"The seeker must solve a clue carved on the wall to pass the trap."

func TestRunTextSingleChunk(t *testing.T) {
	pipe := New(testConfig(), llmclient.NewMock(), zap.NewNop())

	result, err := pipe.RunText(context.Background(), "ruin-story", storyText)
	if err != nil {
		t.Fatal(err)
	}

	if result.DocID != "ruin-story" {
		t.Errorf("doc_id = %q", result.DocID)
	}
	if result.TotalChunks != 1 {
		t.Fatalf("total_chunks = %d, want 1", result.TotalChunks)
	}
	if result.SummaryEN == "" {
		t.Error("summary should carry through from the extraction")
	}

	s := result.State
	if len(s.Characters) != 2 {
		t.Errorf("characters = %d, want seeker and prize holder", len(s.Characters))
	}
	if len(s.Locations) != 1 || s.Locations[0].Name != "Ancient Roman Ruin" {
		t.Errorf("locations = %+v", s.Locations)
	}
	if len(s.Items) != 1 || len(s.Events) != 1 || len(s.Relations) != 1 || len(s.Unresolved) != 1 {
		t.Errorf("state shape: items=%d events=%d relations=%d unresolved=%d",
			len(s.Items), len(s.Events), len(s.Relations), len(s.Unresolved))
	}
}

func TestRunTextMergesAcrossChunks(t *testing.T) {
	cfg := testConfig()
	cfg.ChunkSize = 200
	cfg.ChunkOverlap = 40
	pipe := New(cfg, llmclient.NewMock(), zap.NewNop())

	// Every window of the repeated text triggers the same extraction, so the
	// fold must collapse the per-chunk duplicates.
	longText := strings.Repeat(storyText+" ", 6)
	result, err := pipe.RunText(context.Background(), "long-story", longText)
	if err != nil {
		t.Fatal(err)
	}
	if result.TotalChunks < 3 {
		t.Fatalf("total_chunks = %d, want several", result.TotalChunks)
	}

	s := result.State
	if len(s.Characters) != 2 {
		t.Errorf("characters = %d, want duplicates merged into 2", len(s.Characters))
	}
	if len(s.Locations) != 1 {
		t.Errorf("locations = %d, want duplicates merged into 1", len(s.Locations))
	}
	if len(s.Items) != 1 {
		t.Errorf("items = %d, want duplicates merged into 1", len(s.Items))
	}
	if len(s.Events) != 1 {
		t.Fatalf("events = %d, want identical summaries merged into 1", len(s.Events))
	}
	if got := s.Events[0].OrderRank(); got != 1 {
		t.Errorf("merged event order = %d, want earliest hint 1", got)
	}
	if len(s.Unresolved) != 1 {
		t.Errorf("unresolved = %d, want identical questions merged into 1", len(s.Unresolved))
	}
}

func TestRunReadsPlainTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruin story.txt")
	if err := os.WriteFile(path, []byte(storyText), 0o644); err != nil {
		t.Fatal(err)
	}

	pipe := New(testConfig(), llmclient.NewMock(), zap.NewNop())
	result, err := pipe.Run(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if result.DocID != "ruin story" {
		t.Errorf("doc_id = %q, want file stem", result.DocID)
	}
}

func TestRunRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "story.docx")
	if err := os.WriteFile(path, []byte("irrelevant"), 0o644); err != nil {
		t.Fatal(err)
	}

	pipe := New(testConfig(), llmclient.NewMock(), zap.NewNop())
	if _, err := pipe.Run(context.Background(), path); !apperrors.IsUnsupportedFile(err) {
		t.Errorf("expected unsupported file error, got %v", err)
	}
}

func TestRunTextRetryBudgetExhausted(t *testing.T) {
	calls := 0
	garbage := oracleFunc(func(context.Context, string, string) (string, error) {
		calls++
		return "I have no structured answer for you.", nil
	})

	pipe := New(testConfig(), garbage, zap.NewNop())
	_, err := pipe.RunText(context.Background(), "doc", "a short chunk")
	if !apperrors.IsNoJSONObject(err) {
		t.Fatalf("expected no-JSON-object error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("oracle called %d times, want the full retry budget of 2", calls)
	}
	msg := err.Error()
	if !strings.Contains(msg, "chunk 0") {
		t.Errorf("error must identify the failing chunk: %q", msg)
	}
	if !strings.Contains(msg, "no structured answer") {
		t.Errorf("error must carry a sample of the raw output: %q", msg)
	}
}

func TestRunTextOracleTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	failing := oracleFunc(func(context.Context, string, string) (string, error) {
		return "", boom
	})

	pipe := New(testConfig(), failing, zap.NewNop())
	_, err := pipe.RunText(context.Background(), "doc", "a short chunk")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}

func TestRunTextMissingStateField(t *testing.T) {
	chatty := oracleFunc(func(context.Context, string, string) (string, error) {
		return `{"answer": "the ruin is old"}`, nil
	})

	pipe := New(testConfig(), chatty, zap.NewNop())
	_, err := pipe.RunText(context.Background(), "doc", "a short chunk")
	if !errors.Is(err, apperrors.ErrInvalidExtraction) {
		t.Errorf("expected invalid extraction error, got %v", err)
	}
}

func TestRunTextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe := New(testConfig(), llmclient.NewMock(), zap.NewNop())
	if _, err := pipe.RunText(ctx, "doc", storyText); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunTextToleratesMalformedMetadata(t *testing.T) {
	sloppy := oracleFunc(func(context.Context, string, string) (string, error) {
		return `{"doc_id": 42, "chunk_id": "zero", "state": {"characters": [{"id": "char_01", "name": "Ana"}]}, "summary_en": "Ana appears."}`, nil
	})

	pipe := New(testConfig(), sloppy, zap.NewNop())
	result, err := pipe.RunText(context.Background(), "doc", "a short chunk")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.State.Characters) != 1 || result.State.Characters[0].Name != "Ana" {
		t.Errorf("usable state must survive sloppy metadata: %+v", result.State.Characters)
	}
	if result.SummaryEN != "Ana appears." {
		t.Errorf("summary = %q", result.SummaryEN)
	}
}
