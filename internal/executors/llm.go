package executors

import (
	"context"

	"github.com/resumeforge/orchestrator/internal/llmclient"
	"github.com/resumeforge/orchestrator/internal/workflow"
)

const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 1000
)

// CompletionClient is the model invocation capability the LLM executor
// depends on.
type CompletionClient interface {
	Complete(ctx context.Context, req llmclient.CompletionRequest) (*llmclient.CompletionResponse, error)
}

// LLM executes llm-call steps against the model invocation service.
type LLM struct {
	client CompletionClient
}

// NewLLM builds the llm-call executor.
func NewLLM(client CompletionClient) *LLM {
	return &LLM{client: client}
}

// Type implements workflow.Executor.
func (x *LLM) Type() workflow.StepType { return workflow.StepLLMCall }

// Execute forwards prompt, temperature (default 0.7) and maxTokens
// (default 1000), tagged with the scenario derived from the step's
// model tier.
func (x *LLM) Execute(ctx context.Context, step *workflow.Step, wctx *workflow.Context, _ []workflow.Outcome) (workflow.Outcome, error) {
	resp, err := x.client.Complete(ctx, llmclient.CompletionRequest{
		Prompt:      stringInput(step.Input, "prompt"),
		Temperature: floatInput(step.Input, "temperature", defaultTemperature),
		MaxTokens:   intInput(step.Input, "maxTokens", defaultMaxTokens),
		Tier:        string(step.ModelTier),
		UserID:      wctx.UserID,
		SessionID:   wctx.SessionID,
	})
	if err != nil {
		return nil, err
	}
	return workflow.Outcome{
		"content":    resp.Content,
		"tokenUsage": resp.Usage.TotalTokens,
	}, nil
}

// Fallback preserves the content field downstream steps read.
func (x *LLM) Fallback(err error) workflow.Outcome {
	return workflow.Outcome{
		"content":    "",
		"tokenUsage": 0,
		"error":      err.Error(),
	}
}
