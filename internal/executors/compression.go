package executors

import (
	"context"

	"github.com/resumeforge/orchestrator/internal/compression"
	"github.com/resumeforge/orchestrator/internal/workflow"
)

// Compressor is the context compression capability the compression
// executor depends on.
type Compressor interface {
	Compress(ctx context.Context, content string, maxTokens int) (*compression.CompressResult, error)
}

// Compression executes compression steps against the compression
// service.
type Compression struct {
	service Compressor
}

// NewCompression builds the compression executor.
func NewCompression(service Compressor) *Compression {
	return &Compression{service: service}
}

// Type implements workflow.Executor.
func (x *Compression) Type() workflow.StepType { return workflow.StepCompression }

// Execute compresses the step's content down to its maxTokens budget.
func (x *Compression) Execute(ctx context.Context, step *workflow.Step, _ *workflow.Context, _ []workflow.Outcome) (workflow.Outcome, error) {
	res, err := x.service.Compress(ctx,
		stringInput(step.Input, "content"),
		intInput(step.Input, "maxTokens", defaultMaxTokens),
	)
	if err != nil {
		return nil, err
	}
	return workflow.Outcome{
		"compressed": res.Compressed,
		"tokenUsage": res.TokensUsed,
	}, nil
}

// Fallback preserves the compressed field downstream steps read.
func (x *Compression) Fallback(err error) workflow.Outcome {
	return workflow.Outcome{
		"compressed": "",
		"tokenUsage": 0,
		"error":      err.Error(),
	}
}
