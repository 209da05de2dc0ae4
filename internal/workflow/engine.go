package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/resumeforge/orchestrator/internal/metrics"
	"github.com/resumeforge/orchestrator/internal/streaming"
	"github.com/resumeforge/orchestrator/internal/tracing"
	"github.com/resumeforge/orchestrator/internal/usage"
)

// IntermediateCache is the best-effort memoization capability consulted
// by sequential runs. Every error is treated as a miss; the cache is an
// optimization, never a correctness dependency.
type IntermediateCache interface {
	Get(ctx context.Context, sessionID, stepID string) (Outcome, bool, error)
	Set(ctx context.Context, sessionID, stepID string, out Outcome, ttl time.Duration) error
}

// EventPublisher receives step progress events for streaming to clients.
type EventPublisher interface {
	Publish(sessionID string, evt streaming.Event)
}

// UsageRecorder persists per-step token consumption for billing audit.
type UsageRecorder interface {
	RecordStep(ctx context.Context, rec usage.Record)
}

// Engine composes steps into sequential, parallel or conditional
// pipelines on top of executor dispatch, the intermediate result cache
// and per-executor fallbacks. Step failures degrade the run; they never
// abort it.
type Engine struct {
	registry *Registry
	logger   *zap.Logger

	cache    IntermediateCache
	cacheTTL time.Duration
	events   EventPublisher
	usage    UsageRecorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables intermediate result caching for sequential runs.
// A non-positive ttl falls back to one hour.
func WithCache(store IntermediateCache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = store
		if ttl > 0 {
			e.cacheTTL = ttl
		}
	}
}

// WithEvents enables step progress event publishing.
func WithEvents(pub EventPublisher) Option {
	return func(e *Engine) { e.events = pub }
}

// WithUsageRecorder enables token usage audit rows for dispatched steps.
func WithUsageRecorder(rec UsageRecorder) Option {
	return func(e *Engine) { e.usage = rec }
}

// NewEngine builds an engine over the given executor registry.
func NewEngine(registry *Registry, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		logger:   logger,
		cacheTTL: time.Hour,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSequential executes steps strictly in list order. Each step is
// attempted exactly once: a cache hit short-circuits dispatch with zero
// recorded cost, a dispatch failure records the executor's fallback
// outcome, and the loop never stops early. Success means every step
// completed without an error.
func (e *Engine) RunSequential(ctx context.Context, steps []*Step, wctx *Context) *Result {
	start := time.Now()
	runID := uuid.New().String()
	ctx, span := tracing.StartRunSpan(ctx, "sequential", wctx.SessionID)
	defer span.End()
	metrics.WorkflowsStarted.WithLabelValues("sequential").Inc()

	res := &Result{
		Results:    make([]Outcome, 0, len(steps)),
		TokenUsage: TokenUsage{ByStep: make(map[string]int, len(steps))},
	}
	failed := false

	for _, step := range steps {
		if out, ok := e.cacheLookup(ctx, wctx.SessionID, step.ID); ok {
			// Cached outcomes are reused verbatim and cost nothing.
			step.Output = out
			step.TokenUsage = 0
			res.Results = append(res.Results, out)
			res.TokenUsage.ByStep[step.ID] = 0
			metrics.StepExecutions.WithLabelValues(string(step.Type), "cached").Inc()
			e.logStep(step, "cached")
			e.publishStep(wctx.SessionID, streaming.EventStepCached, step)
			continue
		}

		out, err := e.dispatch(ctx, step, wctx, res.Results)
		if err != nil {
			failed = true
			res.Results = append(res.Results, step.Output)
			res.TokenUsage.ByStep[step.ID] = 0
			e.recordUsage(ctx, runID, wctx, step)
			continue
		}

		res.Results = append(res.Results, out)
		res.TokenUsage.ByStep[step.ID] = step.TokenUsage
		e.cacheWrite(ctx, wctx.SessionID, step.ID, out)
		e.recordUsage(ctx, runID, wctx, step)
	}

	res.Success = len(res.Results) == len(steps) && !failed
	e.finish(res, start, "sequential", wctx)
	return res
}

// RunParallel dispatches all steps concurrently. Steps must be
// independent: each is executed with an empty prior-outcome list and a
// rejected step leaves a nil entry in Results without affecting its
// siblings. The cache is not consulted. Success means every step
// settled without an error.
func (e *Engine) RunParallel(ctx context.Context, steps []*Step, wctx *Context) *Result {
	start := time.Now()
	runID := uuid.New().String()
	ctx, span := tracing.StartRunSpan(ctx, "parallel", wctx.SessionID)
	defer span.End()
	metrics.WorkflowsStarted.WithLabelValues("parallel").Inc()

	results := make([]Outcome, len(steps))
	errs := make([]error, len(steps))

	done := make(chan int, len(steps))
	for i := range steps {
		go func(i int, step *Step) {
			defer func() { done <- i }()
			out, err := e.dispatch(ctx, step, wctx, nil)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = out
		}(i, steps[i])
	}
	for range steps {
		<-done
	}

	res := &Result{
		Results:    results,
		TokenUsage: TokenUsage{ByStep: make(map[string]int, len(steps))},
	}
	failures := 0
	for i, step := range steps {
		if errs[i] != nil {
			failures++
			res.TokenUsage.ByStep[step.ID] = 0
		} else {
			res.TokenUsage.ByStep[step.ID] = step.TokenUsage
		}
		e.recordUsage(ctx, runID, wctx, step)
	}

	res.Success = failures == 0
	e.finish(res, start, "parallel", wctx)
	return res
}

// RunConditional evaluates the predicate exactly once and runs the
// matching branch sequentially; the other branch is never dispatched.
// The predicate is assumed non-throwing: a panicking predicate
// propagates to the caller, unlike every other failure path here.
func (e *Engine) RunConditional(ctx context.Context, pred func(*Context) bool, trueBranch, falseBranch []*Step, wctx *Context) *Result {
	branch := falseBranch
	taken := "false"
	if pred(wctx) {
		branch = trueBranch
		taken = "true"
	}
	e.logger.Debug("Conditional branch selected",
		zap.String("session_id", wctx.SessionID),
		zap.String("branch", taken),
		zap.Int("steps", len(branch)),
	)
	return e.RunSequential(ctx, branch, wctx)
}

// dispatch routes one step to its executor and records the outcome on
// the step. On failure the step carries the executor's fallback shape
// (or a bare error object for an unknown type) and the error is
// returned so the caller can account for it.
func (e *Engine) dispatch(ctx context.Context, step *Step, wctx *Context, prior []Outcome) (Outcome, error) {
	ctx, span := tracing.StartStepSpan(ctx, step.ID, string(step.Type))
	defer span.End()

	e.publishStep(wctx.SessionID, streaming.EventStepStarted, step)

	exec, known := e.registry.Lookup(step.Type)
	started := time.Now()

	var out Outcome
	var err error
	if !known {
		err = errUnknownStepType(step.Type)
	} else {
		out, err = exec.Execute(ctx, step, wctx, prior)
	}
	step.Latency = time.Since(started)
	metrics.StepDuration.WithLabelValues(string(step.Type)).Observe(float64(step.Latency.Milliseconds()))

	if err != nil {
		if known {
			step.Output = exec.Fallback(err)
		} else {
			step.Output = genericFallback(err)
		}
		step.Err = err.Error()
		step.TokenUsage = 0
		metrics.StepExecutions.WithLabelValues(string(step.Type), "failed").Inc()
		e.logStep(step, "failed")
		e.publishStep(wctx.SessionID, streaming.EventStepFailed, step)
		return nil, err
	}

	step.Output = out
	step.TokenUsage = out.Tokens()
	step.Err = ""
	metrics.StepExecutions.WithLabelValues(string(step.Type), "completed").Inc()
	metrics.StepTokensUsed.WithLabelValues(string(step.Type)).Observe(float64(step.TokenUsage))
	e.logStep(step, "completed")
	e.publishStep(wctx.SessionID, streaming.EventStepCompleted, step)
	return out, nil
}

func (e *Engine) cacheLookup(ctx context.Context, sessionID, stepID string) (Outcome, bool) {
	if e.cache == nil {
		return nil, false
	}
	out, ok, err := e.cache.Get(ctx, sessionID, stepID)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		e.logger.Warn("Intermediate cache read failed, treating as miss",
			zap.String("session_id", sessionID),
			zap.String("step_id", stepID),
			zap.Error(err),
		)
		return nil, false
	}
	if ok {
		metrics.CacheHits.Inc()
		return out, true
	}
	metrics.CacheMisses.Inc()
	return nil, false
}

func (e *Engine) cacheWrite(ctx context.Context, sessionID, stepID string, out Outcome) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, sessionID, stepID, out, e.cacheTTL); err != nil {
		metrics.CacheErrors.WithLabelValues("set").Inc()
		e.logger.Warn("Intermediate cache write failed",
			zap.String("session_id", sessionID),
			zap.String("step_id", stepID),
			zap.Error(err),
		)
	}
}

func (e *Engine) recordUsage(ctx context.Context, runID string, wctx *Context, step *Step) {
	if e.usage == nil {
		return
	}
	e.usage.RecordStep(ctx, usage.Record{
		RunID:      runID,
		SessionID:  wctx.SessionID,
		UserID:     wctx.UserID,
		StepID:     step.ID,
		StepType:   string(step.Type),
		ModelTier:  string(step.ModelTier),
		TokensUsed: step.TokenUsage,
		Duration:   step.Latency,
	})
}

func (e *Engine) logStep(step *Step, status string) {
	fields := []zap.Field{
		zap.String("step_id", step.ID),
		zap.String("step_name", step.Name),
		zap.String("step_type", string(step.Type)),
		zap.String("model_tier", string(step.ModelTier)),
		zap.Duration("duration", step.Latency),
		zap.Int("token_usage", step.TokenUsage),
		zap.String("status", status),
	}
	if step.Err != "" {
		fields = append(fields, zap.String("error", step.Err))
		e.logger.Warn("Step failed", fields...)
		return
	}
	e.logger.Info("Step executed", fields...)
}

func (e *Engine) publishStep(sessionID, eventType string, step *Step) {
	if e.events == nil {
		return
	}
	e.events.Publish(sessionID, streaming.Event{
		Type:       eventType,
		StepID:     step.ID,
		StepName:   step.Name,
		StepType:   string(step.Type),
		TokensUsed: step.TokenUsage,
		Message:    step.Err,
	})
}

// finish folds aggregate accounting into the result and emits the
// run-level metrics, log record and completion event.
func (e *Engine) finish(res *Result, start time.Time, mode string, wctx *Context) {
	res.Duration = time.Since(start)
	total := 0
	for _, n := range res.TokenUsage.ByStep {
		total += n
	}
	res.TokenUsage.Total = total

	status := "failed"
	if res.Success {
		status = "completed"
	}
	metrics.WorkflowsCompleted.WithLabelValues(mode, status).Inc()
	metrics.WorkflowDuration.WithLabelValues(mode).Observe(res.Duration.Seconds())
	metrics.WorkflowTokensUsed.Observe(float64(total))

	e.logger.Info("Workflow run finished",
		zap.String("mode", mode),
		zap.String("session_id", wctx.SessionID),
		zap.String("user_id", wctx.UserID),
		zap.Bool("success", res.Success),
		zap.Int("steps", len(res.Results)),
		zap.Int("total_tokens", total),
		zap.Duration("duration", res.Duration),
	)
	if e.events != nil {
		e.events.Publish(wctx.SessionID, streaming.Event{
			Type:       streaming.EventWorkflowCompleted,
			TokensUsed: total,
		})
	}
}
