// Package tools is the HTTP client for the tool registry service,
// which hosts the deterministic helpers agent pipelines invoke
// (keyword extraction, resume linting, job description parsing, ...).
package tools

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

// InvokeResult is the registry's reply for one tool invocation. Result
// is tool-specific; TokensUsed is nonzero only for tools that perform
// model calls internally.
type InvokeResult struct {
	Result     interface{} `json:"result"`
	TokensUsed int         `json:"tokens_used"`
}

// Client calls the tool registry service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New builds a client with a 30s default timeout.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Invoke executes a named tool with its input payload.
func (c *Client) Invoke(ctx context.Context, toolName string, toolInput map[string]interface{}) (*InvokeResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"name":  toolName,
		"input": toolInput,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tool request: %w", err)
	}

	url := c.baseURL + "/tools/execute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	started := time.Now()
	resp, err := c.http.Do(req)
	metrics.CollaboratorRequestDuration.WithLabelValues("tools").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.CollaboratorRequests.WithLabelValues("tools", "error").Inc()
		return nil, fmt.Errorf("tool registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.CollaboratorRequests.WithLabelValues("tools", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("tool registry returned %d for %q: %s", resp.StatusCode, toolName, string(body))
	}

	var out InvokeResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.CollaboratorRequests.WithLabelValues("tools", "error").Inc()
		return nil, fmt.Errorf("decode tool response: %w", err)
	}

	metrics.CollaboratorRequests.WithLabelValues("tools", "ok").Inc()
	c.logger.Debug("Tool invoked",
		zap.String("tool", toolName),
		zap.Int("tokens_used", out.TokensUsed),
	)
	return &out, nil
}
