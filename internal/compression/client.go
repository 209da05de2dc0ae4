// Package compression is the HTTP client for the context compression
// service, which summarizes long content down to a token budget before
// it is fed to further model calls.
package compression

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/resumeforge/orchestrator/internal/metrics"
	"github.com/resumeforge/orchestrator/internal/tracing"
)

// CompressResult is the compression service's reply.
type CompressResult struct {
	Compressed string `json:"compressed"`
	TokensUsed int    `json:"tokens_used"`
}

// Client calls the compression service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a client. Compression runs a model call internally, so the
// default timeout matches the model client's.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Compress reduces content to at most maxTokens tokens.
func (c *Client) Compress(ctx context.Context, content string, maxTokens int) (*CompressResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"content":    content,
		"max_tokens": maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal compression request: %w", err)
	}

	url := c.baseURL + "/context/compress"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build compression request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	started := time.Now()
	resp, err := c.http.Do(req)
	metrics.CollaboratorRequestDuration.WithLabelValues("compression").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.CollaboratorRequests.WithLabelValues("compression", "error").Inc()
		return nil, fmt.Errorf("compression request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.CollaboratorRequests.WithLabelValues("compression", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("compression service returned %d: %s", resp.StatusCode, string(body))
	}

	var out CompressResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.CollaboratorRequests.WithLabelValues("compression", "error").Inc()
		return nil, fmt.Errorf("decode compression response: %w", err)
	}

	metrics.CollaboratorRequests.WithLabelValues("compression", "ok").Inc()
	c.logger.Debug("Content compressed",
		zap.Int("input_chars", len(content)),
		zap.Int("tokens_used", out.TokensUsed),
	)
	return &out, nil
}
