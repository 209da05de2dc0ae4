// Package retrieval is the HTTP client for the document retrieval
// service backing rag-retrieval steps (resume templates, interview
// question banks, coaching material).
package retrieval

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

// QueryResult is the retrieval service's reply. Documents are opaque to
// the orchestrator; downstream llm-call steps consume them.
type QueryResult struct {
	Documents  []interface{} `json:"documents"`
	TokensUsed int           `json:"tokens_used"`
}

// Client calls the retrieval service.
type Client struct {
	baseURL string
	topK    int
	http    *http.Client
	logger  *zap.Logger
}

// New builds a client. topK bounds how many documents a query returns;
// zero keeps the service default.
func New(baseURL string, timeout time.Duration, topK int, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		topK:    topK,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Query runs one retrieval query.
func (c *Client) Query(ctx context.Context, query string) (*QueryResult, error) {
	body := map[string]interface{}{"query": query}
	if c.topK > 0 {
		body["top_k"] = c.topK
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval request: %w", err)
	}

	url := c.baseURL + "/retrieval/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build retrieval request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	started := time.Now()
	resp, err := c.http.Do(req)
	metrics.CollaboratorRequestDuration.WithLabelValues("retrieval").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.CollaboratorRequests.WithLabelValues("retrieval", "error").Inc()
		return nil, fmt.Errorf("retrieval request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.CollaboratorRequests.WithLabelValues("retrieval", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("retrieval service returned %d: %s", resp.StatusCode, string(body))
	}

	var out QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.CollaboratorRequests.WithLabelValues("retrieval", "error").Inc()
		return nil, fmt.Errorf("decode retrieval response: %w", err)
	}

	metrics.CollaboratorRequests.WithLabelValues("retrieval", "ok").Inc()
	c.logger.Debug("Retrieval query completed",
		zap.Int("documents", len(out.Documents)),
		zap.Int("tokens_used", out.TokensUsed),
	)
	return &out, nil
}
