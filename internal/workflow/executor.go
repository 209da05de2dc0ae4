package workflow

import (
	"context"
	"fmt"
	"sync"
)

// Executor runs steps of a single type against its collaborator and
// owns the fallback shape substituted when execution fails. Prior holds
// the outcomes of earlier steps in a sequential run, index-aligned with
// the step list; it is empty in parallel mode.
type Executor interface {
	Type() StepType
	Execute(ctx context.Context, step *Step, wctx *Context, prior []Outcome) (Outcome, error)
	Fallback(err error) Outcome
}

// Registry maps step types to executors. Adding a step type is a
// registration, not a dispatch-site edit.
type Registry struct {
	mu        sync.RWMutex
	executors map[StepType]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[StepType]Executor)}
}

// Register adds an executor, replacing any previous one for the type.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Type()] = e
}

// Lookup returns the executor for a step type.
func (r *Registry) Lookup(t StepType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[t]
	return e, ok
}

// Types returns the registered step types.
func (r *Registry) Types() []StepType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StepType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	return out
}

// errUnknownStepType is the step-local failure for a type with no
// registered executor. It is contained by the engine's error path like
// any collaborator failure.
func errUnknownStepType(t StepType) error {
	return fmt.Errorf("unknown step type: %s", t)
}

// genericFallback is the shape recorded for steps whose type has no
// executor: only the error, no payload field to preserve.
func genericFallback(err error) Outcome {
	return Outcome{"error": err.Error()}
}
