package executors

import (
	"context"

	"github.com/resumeforge/orchestrator/internal/retrieval"
	"github.com/resumeforge/orchestrator/internal/workflow"
)

// DocumentQuerier is the retrieval capability the retrieval executor
// depends on.
type DocumentQuerier interface {
	Query(ctx context.Context, query string) (*retrieval.QueryResult, error)
}

// Retrieval executes rag-retrieval steps against the retrieval service.
type Retrieval struct {
	service DocumentQuerier
}

// NewRetrieval builds the rag-retrieval executor.
func NewRetrieval(service DocumentQuerier) *Retrieval {
	return &Retrieval{service: service}
}

// Type implements workflow.Executor.
func (x *Retrieval) Type() workflow.StepType { return workflow.StepRAGRetrieval }

// Execute runs the step's query against the retrieval service.
func (x *Retrieval) Execute(ctx context.Context, step *workflow.Step, _ *workflow.Context, _ []workflow.Outcome) (workflow.Outcome, error) {
	res, err := x.service.Query(ctx, stringInput(step.Input, "query"))
	if err != nil {
		return nil, err
	}
	docs := res.Documents
	if docs == nil {
		docs = []interface{}{}
	}
	return workflow.Outcome{
		"documents":  docs,
		"tokenUsage": res.TokensUsed,
	}, nil
}

// Fallback preserves the documents field downstream steps read.
func (x *Retrieval) Fallback(err error) workflow.Outcome {
	return workflow.Outcome{
		"documents":  []interface{}{},
		"tokenUsage": 0,
		"error":      err.Error(),
	}
}
