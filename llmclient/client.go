package llmclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"narrative-agent/config"
	apperrors "narrative-agent/errors"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
)

// generateRequest mirrors the Ollama /api/generate schema.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client is the HTTP oracle collaborator. It sends one prompt per document
// chunk and hands back the raw model text unmodified; recovering a structured
// object from that text is the caller's concern.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
	cache      *lru.Cache
}

func New(cfg *config.Config, logger *zap.Logger) (*Client, error) {
	// Chunks of one document overlap, and re-runs repeat whole documents;
	// a small response cache short-circuits identical prompts.
	cache, err := lru.New(max(cfg.ResponseCacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("create response cache: %w", err)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.OracleRequestTimeout},
		logger:     logger,
		cache:      cache,
	}, nil
}

// Infer performs a non-streaming generate call and returns the raw model
// output text. Transport failures and 503s (model loading) are retried with
// backoff up to the configured budget; context cancellation is not retried.
func (c *Client) Infer(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	key := promptDigest(systemPrompt, userPrompt)
	if cached, ok := c.cache.Get(key); ok {
		c.logger.Debug("Oracle response served from cache")
		return cached.(string), nil
	}

	reqBody := generateRequest{
		Model:   c.cfg.OracleModel,
		Prompt:  fmt.Sprintf("<|system|>\n%s\n<|user|>\n%s\n<|assistant|>", systemPrompt, userPrompt),
		Stream:  false,
		Options: generateOptions{Temperature: c.cfg.OracleTemperature},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", strings.TrimRight(c.cfg.OracleHost, "/"))

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < max(c.cfg.MaxRetries, 1); attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
		if err != nil {
			return "", fmt.Errorf("create generate request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			resp = nil
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			c.backoffSleep(attempt)
			continue
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			// Model loading; retry with backoff
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			resp = nil
			c.logger.Warn("Oracle unavailable, retrying", zap.Int("attempt", attempt+1))
			c.backoffSleep(attempt)
			continue
		}
		break
	}
	if resp == nil {
		return "", apperrors.WrapError(apperrors.ErrOracleCommunication,
			fmt.Sprintf("no response from oracle after retries (%v)", lastErr))
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.WrapErrorf(apperrors.ErrOracleCommunication,
			"oracle status %s: %s", resp.Status, string(bodyBytes))
	}

	var gr generateResponse
	if err := json.Unmarshal(bodyBytes, &gr); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	c.cache.Add(key, gr.Response)
	return gr.Response, nil
}

func (c *Client) backoffSleep(attempt int) {
	delay := c.cfg.RetryDelaySeconds * time.Duration(attempt+1)
	if delay <= 0 {
		delay = time.Second
	}
	time.Sleep(delay)
}

func promptDigest(systemPrompt, userPrompt string) string {
	h := sha256.New()
	h.Write([]byte(systemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(userPrompt))
	return hex.EncodeToString(h.Sum(nil))
}
