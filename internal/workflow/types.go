package workflow

import (
	"time"
)

// StepType identifies which collaborator a step dispatches to.
type StepType string

const (
	StepLLMCall      StepType = "llm-call"
	StepToolUse      StepType = "tool-use"
	StepRAGRetrieval StepType = "rag-retrieval"
	StepCompression  StepType = "compression"
)

// ModelTier is a coarse cost/quality selector forwarded to the model
// invocation service for llm-call steps.
type ModelTier string

const (
	TierCostOptimized    ModelTier = "cost-optimized"
	TierBalanced         ModelTier = "balanced"
	TierQualityOptimized ModelTier = "quality-optimized"
)

// Outcome is the normalized payload produced by executing one step.
// Keys are the wire keys downstream consumers read: "tokenUsage" plus
// the type-specific payload field ("content", "result", "documents",
// "compressed") and "error" when the step degraded to its fallback.
type Outcome map[string]interface{}

// Tokens extracts the tokenUsage field from an outcome. Outcomes that
// round-trip through the cache carry JSON numbers, so both int and
// float64 are accepted.
func (o Outcome) Tokens() int {
	switch v := o["tokenUsage"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Step is one unit of work in a pipeline. The engine mutates Output,
// TokenUsage, Latency and Err in place; callers must not share a Step
// value across concurrent runs.
type Step struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Type      StepType               `json:"type"`
	ModelTier ModelTier              `json:"model_tier,omitempty"`
	Input     map[string]interface{} `json:"input"`

	// Populated by the engine after execution.
	Output     Outcome       `json:"output,omitempty"`
	TokenUsage int           `json:"token_usage"`
	Latency    time.Duration `json:"latency"`
	Err        string        `json:"error,omitempty"`
}

// Context carries run-scoped correlation data. SessionID namespaces the
// intermediate result cache; State is read by conditional predicates.
type Context struct {
	SessionID string                 `json:"session_id"`
	UserID    string                 `json:"user_id"`
	State     map[string]interface{} `json:"state,omitempty"`
}

// TokenUsage aggregates token consumption for one run.
type TokenUsage struct {
	Total  int            `json:"total"`
	ByStep map[string]int `json:"by_step"`
}

// Result is the aggregate outcome of one engine invocation. Results is
// index-aligned with the input step list; a nil entry marks a parallel
// step that was rejected.
type Result struct {
	Success    bool          `json:"success"`
	Results    []Outcome     `json:"results"`
	TokenUsage TokenUsage    `json:"token_usage"`
	Duration   time.Duration `json:"duration"`
}
