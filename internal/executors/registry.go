package executors

import (
	"github.com/resumeforge/orchestrator/internal/workflow"
)

// NewRegistry wires the standard executor set for all four step types.
func NewRegistry(llm CompletionClient, registry ToolInvoker, docs DocumentQuerier, compressor Compressor) *workflow.Registry {
	r := workflow.NewRegistry()
	r.Register(NewLLM(llm))
	r.Register(NewTool(registry))
	r.Register(NewRetrieval(docs))
	r.Register(NewCompression(compressor))
	return r
}
