package executors

import (
	"context"
	"fmt"

	"github.com/resumeforge/orchestrator/internal/tools"
	"github.com/resumeforge/orchestrator/internal/workflow"
)

// ToolInvoker is the tool registry capability the tool executor depends
// on.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolName string, toolInput map[string]interface{}) (*tools.InvokeResult, error)
}

// Tool executes tool-use steps against the tool registry.
type Tool struct {
	registry ToolInvoker
}

// NewTool builds the tool-use executor.
func NewTool(registry ToolInvoker) *Tool {
	return &Tool{registry: registry}
}

// Type implements workflow.Executor.
func (x *Tool) Type() workflow.StepType { return workflow.StepToolUse }

// Execute invokes the named tool with its input payload.
func (x *Tool) Execute(ctx context.Context, step *workflow.Step, _ *workflow.Context, _ []workflow.Outcome) (workflow.Outcome, error) {
	name := stringInput(step.Input, "toolName")
	if name == "" {
		return nil, fmt.Errorf("tool-use step %s: missing toolName", step.ID)
	}
	res, err := x.registry.Invoke(ctx, name, mapInput(step.Input, "toolInput"))
	if err != nil {
		return nil, err
	}
	return workflow.Outcome{
		"result":     res.Result,
		"tokenUsage": res.TokensUsed,
	}, nil
}

// Fallback preserves the result field downstream steps read.
func (x *Tool) Fallback(err error) workflow.Outcome {
	return workflow.Outcome{
		"result":     nil,
		"tokenUsage": 0,
		"error":      err.Error(),
	}
}
