package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/resumeforge/orchestrator/internal/cache"
	"github.com/resumeforge/orchestrator/internal/streaming"
	"github.com/resumeforge/orchestrator/internal/workflow"
)

// stubExecutor counts calls per step id and delegates to a per-test
// execute function.
type stubExecutor struct {
	typ      workflow.StepType
	fallback workflow.Outcome

	mu      sync.Mutex
	calls   map[string]int
	execute func(step *workflow.Step) (workflow.Outcome, error)
}

func newStub(typ workflow.StepType, execute func(step *workflow.Step) (workflow.Outcome, error)) *stubExecutor {
	return &stubExecutor{typ: typ, calls: make(map[string]int), execute: execute}
}

func (s *stubExecutor) Type() workflow.StepType { return s.typ }

func (s *stubExecutor) Execute(_ context.Context, step *workflow.Step, _ *workflow.Context, _ []workflow.Outcome) (workflow.Outcome, error) {
	s.mu.Lock()
	s.calls[step.ID]++
	s.mu.Unlock()
	return s.execute(step)
}

func (s *stubExecutor) Fallback(err error) workflow.Outcome {
	out := workflow.Outcome{"tokenUsage": 0, "error": err.Error()}
	for k, v := range s.fallback {
		out[k] = v
	}
	return out
}

func (s *stubExecutor) callCount(stepID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stepID]
}

func llmStub(tokens int) *stubExecutor {
	s := newStub(workflow.StepLLMCall, func(step *workflow.Step) (workflow.Outcome, error) {
		return workflow.Outcome{"content": "out:" + step.ID, "tokenUsage": tokens}, nil
	})
	s.fallback = workflow.Outcome{"content": ""}
	return s
}

func makeStep(id string, typ workflow.StepType) *workflow.Step {
	return &workflow.Step{ID: id, Name: "step " + id, Type: typ, Input: map[string]interface{}{}}
}

func testContext() *workflow.Context {
	return &workflow.Context{SessionID: "sess-1", UserID: "user-1"}
}

func newEngine(t *testing.T, execs []workflow.Executor, opts ...workflow.Option) *workflow.Engine {
	t.Helper()
	reg := workflow.NewRegistry()
	for _, e := range execs {
		reg.Register(e)
	}
	return workflow.NewEngine(reg, zaptest.NewLogger(t), opts...)
}

func TestRunSequentialAllSucceed(t *testing.T) {
	stub := llmStub(100)
	engine := newEngine(t, []workflow.Executor{stub})

	steps := []*workflow.Step{
		makeStep("s1", workflow.StepLLMCall),
		makeStep("s2", workflow.StepLLMCall),
		makeStep("s3", workflow.StepLLMCall),
	}
	res := engine.RunSequential(context.Background(), steps, testContext())

	require.Len(t, res.Results, 3)
	assert.True(t, res.Success)
	assert.Equal(t, 300, res.TokenUsage.Total)
	for _, s := range steps {
		assert.Equal(t, 100, res.TokenUsage.ByStep[s.ID])
		assert.Empty(t, s.Err)
		require.NotNil(t, s.Output)
		assert.Equal(t, "out:"+s.ID, s.Output["content"])
	}
}

func TestRunSequentialMiddleStepFails(t *testing.T) {
	llm := llmStub(50)
	tool := newStub(workflow.StepToolUse, func(*workflow.Step) (workflow.Outcome, error) {
		return nil, errors.New("tool registry unreachable")
	})
	tool.fallback = workflow.Outcome{"result": nil}
	engine := newEngine(t, []workflow.Executor{llm, tool})

	steps := []*workflow.Step{
		makeStep("s1", workflow.StepLLMCall),
		makeStep("s2", workflow.StepToolUse),
		makeStep("s3", workflow.StepLLMCall),
	}
	res := engine.RunSequential(context.Background(), steps, testContext())

	require.Len(t, res.Results, 3)
	assert.False(t, res.Success)

	// The failed step carries the structured fallback.
	require.NotNil(t, res.Results[1])
	assert.Nil(t, res.Results[1]["result"])
	assert.Equal(t, 0, res.Results[1].Tokens())
	assert.Equal(t, "tool registry unreachable", res.Results[1]["error"])
	assert.Equal(t, "tool registry unreachable", steps[1].Err)

	// Later steps still ran.
	assert.Equal(t, 1, llm.callCount("s3"))
	assert.Empty(t, steps[2].Err)
	assert.Equal(t, 100, res.TokenUsage.Total)
	assert.Equal(t, 0, res.TokenUsage.ByStep["s2"])
}

func TestRunSequentialUnknownStepType(t *testing.T) {
	engine := newEngine(t, []workflow.Executor{llmStub(10)})

	steps := []*workflow.Step{makeStep("s1", workflow.StepType("telepathy"))}
	res := engine.RunSequential(context.Background(), steps, testContext())

	require.Len(t, res.Results, 1)
	assert.False(t, res.Success)
	require.NotNil(t, res.Results[0])
	assert.Contains(t, res.Results[0]["error"], "unknown step type")
	// Only the error, no payload field to preserve.
	assert.NotContains(t, res.Results[0], "content")
	assert.NotContains(t, res.Results[0], "tokenUsage")
}

func TestRunSequentialCacheShortCircuits(t *testing.T) {
	stub := llmStub(42)
	store := cache.NewMemoryStore()
	engine := newEngine(t, []workflow.Executor{stub}, workflow.WithCache(store, time.Hour))
	wctx := testContext()

	first := engine.RunSequential(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}, wctx)
	require.True(t, first.Success)
	assert.Equal(t, 42, first.TokenUsage.ByStep["s1"])
	assert.Equal(t, 1, stub.callCount("s1"))

	// Same session, same step id: served from cache, zero cost.
	second := engine.RunSequential(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}, wctx)
	require.True(t, second.Success)
	assert.Equal(t, 1, stub.callCount("s1"), "collaborator must not be re-invoked")
	assert.Equal(t, 0, second.TokenUsage.ByStep["s1"])
	assert.Equal(t, 0, second.TokenUsage.Total)
	assert.Equal(t, "out:s1", second.Results[0]["content"])

	// A different session misses.
	other := engine.RunSequential(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)},
		&workflow.Context{SessionID: "sess-2", UserID: "user-1"})
	require.True(t, other.Success)
	assert.Equal(t, 2, stub.callCount("s1"))
}

func TestRunSequentialFailedStepNotCached(t *testing.T) {
	fail := true
	stub := newStub(workflow.StepLLMCall, func(step *workflow.Step) (workflow.Outcome, error) {
		if fail {
			return nil, errors.New("model overloaded")
		}
		return workflow.Outcome{"content": "ok", "tokenUsage": 7}, nil
	})
	stub.fallback = workflow.Outcome{"content": ""}
	store := cache.NewMemoryStore()
	engine := newEngine(t, []workflow.Executor{stub}, workflow.WithCache(store, time.Hour))
	wctx := testContext()

	res := engine.RunSequential(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}, wctx)
	assert.False(t, res.Success)
	assert.Equal(t, 0, store.Len(), "fallback outcomes must not be cached")

	// The retry run dispatches again.
	fail = false
	res = engine.RunSequential(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}, wctx)
	assert.True(t, res.Success)
	assert.Equal(t, 2, stub.callCount("s1"))
}

// erroringStore fails every operation; the engine must treat that as a
// miss and keep going.
type erroringStore struct{}

func (erroringStore) Get(context.Context, string, string) (workflow.Outcome, bool, error) {
	return nil, false, errors.New("redis down")
}
func (erroringStore) Set(context.Context, string, string, workflow.Outcome, time.Duration) error {
	return errors.New("redis down")
}

func TestRunSequentialCacheErrorsAreNonFatal(t *testing.T) {
	stub := llmStub(5)
	engine := newEngine(t, []workflow.Executor{stub}, workflow.WithCache(erroringStore{}, time.Hour))

	res := engine.RunSequential(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}, testContext())
	require.True(t, res.Success)
	assert.Equal(t, 5, res.TokenUsage.Total)
	assert.Equal(t, 1, stub.callCount("s1"))
}

func TestRunParallelIndexAlignment(t *testing.T) {
	// Later steps finish first; results must still be index-aligned.
	stub := newStub(workflow.StepLLMCall, func(step *workflow.Step) (workflow.Outcome, error) {
		switch step.ID {
		case "s1":
			time.Sleep(30 * time.Millisecond)
		case "s2":
			time.Sleep(10 * time.Millisecond)
		}
		return workflow.Outcome{"content": "out:" + step.ID, "tokenUsage": 10}, nil
	})
	engine := newEngine(t, []workflow.Executor{stub})

	steps := []*workflow.Step{
		makeStep("s1", workflow.StepLLMCall),
		makeStep("s2", workflow.StepLLMCall),
		makeStep("s3", workflow.StepLLMCall),
	}
	res := engine.RunParallel(context.Background(), steps, testContext())

	require.Len(t, res.Results, 3)
	assert.True(t, res.Success)
	for i, s := range steps {
		require.NotNil(t, res.Results[i])
		assert.Equal(t, "out:"+s.ID, res.Results[i]["content"])
	}
	assert.Equal(t, 30, res.TokenUsage.Total)
}

func TestRunParallelFailureIsIsolated(t *testing.T) {
	stub := newStub(workflow.StepLLMCall, func(step *workflow.Step) (workflow.Outcome, error) {
		if step.ID == "s2" {
			return nil, errors.New("model timeout")
		}
		return workflow.Outcome{"content": "ok", "tokenUsage": 20}, nil
	})
	stub.fallback = workflow.Outcome{"content": ""}
	engine := newEngine(t, []workflow.Executor{stub})

	steps := []*workflow.Step{
		makeStep("s1", workflow.StepLLMCall),
		makeStep("s2", workflow.StepLLMCall),
	}
	res := engine.RunParallel(context.Background(), steps, testContext())

	require.Len(t, res.Results, 2)
	assert.False(t, res.Success)
	assert.NotNil(t, res.Results[0])
	// Parallel mode reports a rejected step as nil, not as the
	// structured fallback sequential mode records.
	assert.Nil(t, res.Results[1])
	assert.Equal(t, "model timeout", steps[1].Err)
	assert.Equal(t, 20, res.TokenUsage.Total)
	assert.Equal(t, 0, res.TokenUsage.ByStep["s2"])
}

func TestRunParallelDoesNotTouchCache(t *testing.T) {
	stub := llmStub(10)
	store := cache.NewMemoryStore()
	engine := newEngine(t, []workflow.Executor{stub}, workflow.WithCache(store, time.Hour))

	steps := []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}
	res := engine.RunParallel(context.Background(), steps, testContext())
	require.True(t, res.Success)
	assert.Equal(t, 0, store.Len())

	// A second parallel run re-dispatches.
	engine.RunParallel(context.Background(), []*workflow.Step{makeStep("s1", workflow.StepLLMCall)}, testContext())
	assert.Equal(t, 2, stub.callCount("s1"))
}

func TestRunConditionalSelectsBranch(t *testing.T) {
	stub := llmStub(10)
	engine := newEngine(t, []workflow.Executor{stub})

	trueBranch := []*workflow.Step{makeStep("t1", workflow.StepLLMCall), makeStep("t2", workflow.StepLLMCall)}
	falseBranch := []*workflow.Step{makeStep("f1", workflow.StepLLMCall)}

	wctx := testContext()
	wctx.State = map[string]interface{}{"premium": true}
	pred := func(c *workflow.Context) bool {
		v, _ := c.State["premium"].(bool)
		return v
	}

	res := engine.RunConditional(context.Background(), pred, trueBranch, falseBranch, wctx)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "out:t1", res.Results[0]["content"])
	assert.Equal(t, "out:t2", res.Results[1]["content"])
	assert.Equal(t, 0, stub.callCount("f1"), "untaken branch must never dispatch")

	wctx.State["premium"] = false
	res = engine.RunConditional(context.Background(), pred, trueBranch, falseBranch, wctx)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "out:f1", res.Results[0]["content"])
}

func TestRunConditionalInheritsSequentialCaching(t *testing.T) {
	stub := llmStub(10)
	store := cache.NewMemoryStore()
	engine := newEngine(t, []workflow.Executor{stub}, workflow.WithCache(store, time.Hour))
	wctx := testContext()
	pred := func(*workflow.Context) bool { return true }

	engine.RunConditional(context.Background(), pred, []*workflow.Step{makeStep("c1", workflow.StepLLMCall)}, nil, wctx)
	engine.RunConditional(context.Background(), pred, []*workflow.Step{makeStep("c1", workflow.StepLLMCall)}, nil, wctx)
	assert.Equal(t, 1, stub.callCount("c1"))
}

func TestTokenTotalsMatchByStep(t *testing.T) {
	stub := newStub(workflow.StepLLMCall, func(step *workflow.Step) (workflow.Outcome, error) {
		if step.ID == "s2" {
			return nil, errors.New("boom")
		}
		return workflow.Outcome{"content": "ok", "tokenUsage": len(step.ID) * 11}, nil
	})
	stub.fallback = workflow.Outcome{"content": ""}
	engine := newEngine(t, []workflow.Executor{stub})

	for _, mode := range []string{"sequential", "parallel"} {
		steps := []*workflow.Step{
			makeStep("s1", workflow.StepLLMCall),
			makeStep("s2", workflow.StepLLMCall),
			makeStep("s3", workflow.StepLLMCall),
		}
		var res *workflow.Result
		if mode == "sequential" {
			res = engine.RunSequential(context.Background(), steps, testContext())
		} else {
			res = engine.RunParallel(context.Background(), steps, testContext())
		}
		sum := 0
		for _, n := range res.TokenUsage.ByStep {
			sum += n
		}
		assert.Equal(t, sum, res.TokenUsage.Total, mode)
		assert.Len(t, res.TokenUsage.ByStep, 3, mode)
	}
}

func TestEngineEmitsStepEvents(t *testing.T) {
	stub := newStub(workflow.StepLLMCall, func(step *workflow.Step) (workflow.Outcome, error) {
		if step.ID == "s2" {
			return nil, errors.New("boom")
		}
		return workflow.Outcome{"content": "ok", "tokenUsage": 1}, nil
	})
	stub.fallback = workflow.Outcome{"content": ""}
	events := streaming.NewManager(16)
	engine := newEngine(t, []workflow.Executor{stub}, workflow.WithEvents(events))

	engine.RunSequential(context.Background(), []*workflow.Step{
		makeStep("s1", workflow.StepLLMCall),
		makeStep("s2", workflow.StepLLMCall),
	}, testContext())

	replay := events.ReplaySince("sess-1", 0)
	var types []string
	for _, ev := range replay {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		streaming.EventStepStarted,
		streaming.EventStepCompleted,
		streaming.EventStepStarted,
		streaming.EventStepFailed,
		streaming.EventWorkflowCompleted,
	}, types)
}

func TestOutcomeTokens(t *testing.T) {
	assert.Equal(t, 5, workflow.Outcome{"tokenUsage": 5}.Tokens())
	assert.Equal(t, 5, workflow.Outcome{"tokenUsage": float64(5)}.Tokens())
	assert.Equal(t, 0, workflow.Outcome{"tokenUsage": "5"}.Tokens())
	assert.Equal(t, 0, workflow.Outcome{}.Tokens())
}
