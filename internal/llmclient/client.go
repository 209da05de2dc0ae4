// Package llmclient is the HTTP client for the model invocation
// service. It owns the request timeout and a client-side rate limit;
// callers treat any returned error as a step failure.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/resumeforge/orchestrator/internal/metrics"
	"github.com/resumeforge/orchestrator/internal/tracing"
)

// Usage is the token consumption reported for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// CompletionRequest describes one model call.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	Tier        string  `json:"tier,omitempty"`
	Scenario    string  `json:"scenario,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
}

// CompletionResponse is the model service's reply.
type CompletionResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls; zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Client calls the model invocation service.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a client. The default timeout is two minutes, matching
// the longest tolerated model call.
func New(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL: opts.BaseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Complete forwards one completion request. The scenario tag is derived
// from the tier when not set explicitly.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.Scenario == "" {
		req.Scenario = ScenarioForTier(req.Tier)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	url := c.baseURL + "/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, httpReq)

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.CollaboratorRequestDuration.WithLabelValues("llm").Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.CollaboratorRequests.WithLabelValues("llm", "error").Inc()
		return nil, fmt.Errorf("model service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.CollaboratorRequests.WithLabelValues("llm", "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, string(body))
	}

	var out CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.CollaboratorRequests.WithLabelValues("llm", "error").Inc()
		return nil, fmt.Errorf("decode completion response: %w", err)
	}

	metrics.CollaboratorRequests.WithLabelValues("llm", "ok").Inc()
	c.logger.Debug("Completion returned",
		zap.String("scenario", req.Scenario),
		zap.Int("total_tokens", out.Usage.TotalTokens),
	)
	return &out, nil
}
