package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/asmgallery/internal/archive"
	"github.com/aristath/asmgallery/internal/events"
	"github.com/aristath/asmgallery/internal/explorer"
	"github.com/aristath/asmgallery/internal/persistence"
	"github.com/aristath/asmgallery/internal/progress"
	"github.com/aristath/asmgallery/internal/scheduler"
	"github.com/aristath/asmgallery/internal/telemetry"
)

// ExplainOptions are passed through to every explain request.
type ExplainOptions struct {
	Audience    string // "beginner" or "experienced"
	Type        string // "assembly" or "haiku"
	BypassCache bool
}

// RunnerConfig configures the runner.
type RunnerConfig struct {
	Concurrency int // Max items in flight (default 4)
	Retry       RetryConfig
	Breaker     BreakerConfig
	Explain     ExplainOptions
	Language    string // Optional Compiler Explorer language id for compile requests

	// BypassCompileCache is Compiler Explorer's bypassCache level for compiles (0-2).
	BypassCompileCache int

	// RetryPartial re-executes items whose cached result lacks an explanation.
	RetryPartial bool

	Service explorer.Service // Required
	Cache   *archive.Cache   // Required

	EventBus *events.EventBus   // Optional (nil disables events)
	Store    persistence.Store  // Optional (nil disables the journal)
	Metrics  *telemetry.Metrics // Optional
	Logger   zerolog.Logger

	SourceRoot string // Recorded in the journal
	OutputRoot string
}

// Runner executes work items against the remote service.
type Runner struct {
	config   RunnerConfig
	breakers *CircuitBreakerRegistry
	logger   zerolog.Logger

	mu      sync.Mutex
	summary Summary
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Runner{
		config:   cfg,
		breakers: NewCircuitBreakerRegistry(cfg.Breaker, cfg.Logger),
		logger:   cfg.Logger,
	}
}

// Run executes every item not already cached and returns the run summary.
//
// Items are dispatched in the given order onto a bounded pool. A failed item
// never affects its siblings. When ctx is cancelled no further items or
// retries start; requests already in flight finish or time out, their items
// are counted as cancelled without writing anything, and Run returns the
// partial summary together with ctx.Err().
func (r *Runner) Run(ctx context.Context, items []scheduler.WorkItem) (Summary, error) {
	start := time.Now()
	r.summary = Summary{RunID: uuid.NewString(), Total: len(items)}

	pending, err := r.filterCached(items)
	if err != nil {
		return r.summary, err
	}
	r.config.Metrics.SetCached(r.summary.Cached)

	r.logger.Info().
		Str("run", r.summary.RunID).
		Int("items", len(items)).
		Int("cached", r.summary.Cached).
		Int("pending", len(pending)).
		Msg("Starting run")

	r.beginJournal(ctx, start)
	r.publish(events.TopicRun, events.RunStartedEvent{
		RunID:     r.summary.RunID,
		Total:     len(pending),
		Cached:    r.summary.Cached,
		Timestamp: time.Now(),
	})

	tracker := progress.NewTracker(len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for _, item := range pending {
		if ctx.Err() != nil {
			r.countCancelled()
			continue
		}
		g.Go(func() error {
			r.executeItem(gctx, item, tracker)
			return nil // Item failures are recorded, never returned
		})
	}
	_ = g.Wait()

	r.summary.Elapsed = time.Since(start)
	r.finishJournal(ctx)
	if r.config.EventBus != nil {
		r.config.Metrics.SetEventsDropped(r.config.EventBus.Dropped())
	}
	r.publish(events.TopicRun, events.RunFinishedEvent{
		RunID:     r.summary.RunID,
		Succeeded: r.summary.Succeeded,
		Partial:   r.summary.Partial,
		Failed:    r.summary.Failed(),
		Cancelled: ctx.Err() != nil,
		Elapsed:   r.summary.Elapsed,
		Timestamp: time.Now(),
	})

	if err := ctx.Err(); err != nil {
		return r.summary, err
	}
	return r.summary, nil
}

// filterCached drops items whose slot is complete. With RetryPartial, slots
// holding a partial success are kept for re-execution.
func (r *Runner) filterCached(items []scheduler.WorkItem) ([]scheduler.WorkItem, error) {
	pending := make([]scheduler.WorkItem, 0, len(items))
	for _, item := range items {
		if !r.config.Cache.Has(item) {
			pending = append(pending, item)
			continue
		}
		if r.config.RetryPartial {
			res, ok, err := r.config.Cache.Get(item)
			if err != nil {
				return nil, fmt.Errorf("reading cached %s: %w", item.Key(), err)
			}
			if ok && res.Status() == scheduler.StatusPartial {
				pending = append(pending, item)
				continue
			}
		}
		r.summary.Cached++
	}
	return pending, nil
}

// executeItem resolves one item and records the outcome.
func (r *Runner) executeItem(ctx context.Context, item scheduler.WorkItem, tracker *progress.Tracker) {
	key := item.Key().String()
	if ctx.Err() != nil {
		r.countCancelled()
		return
	}

	r.publish(events.TopicItem, events.ItemStartedEvent{
		Key:       key,
		Label:     fmt.Sprintf("[%s][%s][%s] %s", item.Compiler.ID, item.Scenario.ID, item.File.Category, item.File.Stem),
		Timestamp: time.Now(),
	})

	started := time.Now()
	res, attempts, err := r.resolve(ctx, item)
	if err != nil {
		// Cancelled mid-flight: nothing was written and the item stays pending.
		r.logger.Debug().Str("key", key).Err(err).Msg("Item cancelled")
		r.countCancelled()
		return
	}

	if res.Success != nil {
		if err := r.config.Cache.Put(item, res); err != nil {
			r.logger.Error().Str("key", key).Err(err).Msg("Failed to archive result")
			res = scheduler.Failed(fmt.Sprintf("archiving result: %v", err), false)
		}
	}

	status := res.Status()
	snap := tracker.Record(item, status)
	duration := time.Since(started)

	r.record(item, res)
	r.config.Metrics.ObserveItem(status.String())

	evt := events.ItemResolvedEvent{
		Key:       key,
		Duration:  duration,
		Progress:  snap,
		Timestamp: time.Now(),
	}
	logEvt := r.logger.Debug()
	if res.Failure != nil {
		evt.Reason = res.Failure.Reason
		evt.Retriable = res.Failure.Retriable
		logEvt = r.logger.Warn().Str("reason", res.Failure.Reason).Bool("retriable", res.Failure.Retriable)
	}
	logEvt.Str("key", key).Str("status", status.String()).Int("attempts", attempts).Dur("duration", duration).Msg("Item resolved")
	r.publish(events.TopicItem, evt)

	if r.config.Store != nil {
		o := persistence.Outcome{
			RunID:    r.summary.RunID,
			File:     item.File.RelPath,
			Compiler: item.Compiler.ID,
			Scenario: item.Scenario.ID,
			Status:   status.String(),
			Attempts: attempts,
			Duration: duration,
		}
		if res.Failure != nil {
			o.Reason = res.Failure.Reason
			o.Retriable = res.Failure.Retriable
		}
		if err := r.config.Store.RecordOutcome(context.WithoutCancel(ctx), o); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Failed to journal outcome")
		}
	}
}

// resolve compiles and explains one item. The error is non-nil only when
// ctx was cancelled; every other problem is expressed in the Result.
func (r *Runner) resolve(ctx context.Context, item scheduler.WorkItem) (scheduler.Result, int, error) {
	key := item.Key().String()

	compileReq := explorer.CompileRequest{
		CompilerID:  item.Compiler.ID,
		Source:      item.File.Text,
		Flags:       item.Flags,
		Language:    r.config.Language,
		BypassCache: r.config.BypassCompileCache,
	}
	compiled, compileAttempts, err := callWithRetry(ctx, r.breakers.Get(EndpointCompile), r.config.Retry,
		r.retryObserver(key, EndpointCompile),
		timed(r.config.Metrics, EndpointCompile, func(ctx context.Context) (explorer.CompileResponse, error) {
			return r.config.Service.Compile(ctx, compileReq)
		}))
	if err != nil {
		if ctx.Err() != nil {
			return scheduler.Result{}, compileAttempts, ctx.Err()
		}
		return scheduler.Failed(fmt.Sprintf("compile: %v", err), isTransient(err)), compileAttempts, nil
	}

	asm := compiled.AsmText()
	isa := compiled.InstructionSet
	if isa == "" {
		isa = item.Compiler.Arch
	}

	explainReq := explorer.ExplainRequest{
		Language:           item.File.Language(),
		Compiler:           item.Compiler.Label(),
		Code:               item.File.Text,
		CompilationOptions: strings.Fields(item.Flags),
		InstructionSet:     isa,
		Asm:                compiled.Asm,
		Audience:           r.config.Explain.Audience,
		Explanation:        r.config.Explain.Type,
		BypassCache:        r.config.Explain.BypassCache,
	}
	explained, explainAttempts, err := callWithRetry(ctx, r.breakers.Get(EndpointExplain), r.config.Retry,
		r.retryObserver(key, EndpointExplain),
		timed(r.config.Metrics, EndpointExplain, func(ctx context.Context) (explorer.ExplainResponse, error) {
			return r.config.Service.Explain(ctx, explainReq)
		}))
	attempts := compileAttempts + explainAttempts
	if err != nil {
		if ctx.Err() != nil {
			return scheduler.Result{}, attempts, ctx.Err()
		}
		r.logger.Warn().Str("key", key).Err(err).Msg("Explanation unavailable, keeping assembly")
		return scheduler.Partial(asm, isa), attempts, nil
	}

	explanation := explained.Explanation
	if explanation != "" && !strings.HasSuffix(explanation, "\n") {
		explanation += "\n"
	}
	return scheduler.Succeeded(asm, explanation, isa), attempts, nil
}

// timed wraps a remote call with latency metrics.
func timed[T any](m *telemetry.Metrics, endpoint string, op func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		start := time.Now()
		out, err := op(ctx)
		if !errors.Is(err, context.Canceled) {
			m.ObserveCall(endpoint, err, time.Since(start))
		}
		return out, err
	}
}

func (r *Runner) retryObserver(key, endpoint string) retryObserver {
	return func(attempt int, wait time.Duration, err error) {
		r.config.Metrics.ObserveRetry(endpoint)
		r.logger.Info().Str("key", key).Str("endpoint", endpoint).Int("attempt", attempt).Dur("wait", wait).Err(err).Msg("Retrying transient failure")
		r.publish(events.TopicItem, events.ItemRetryEvent{
			Key:       key,
			Endpoint:  endpoint,
			Attempt:   attempt,
			Wait:      wait,
			Err:       err,
			Timestamp: time.Now(),
		})
	}
}

// record folds a resolved item into the summary.
func (r *Runner) record(item scheduler.WorkItem, res scheduler.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch res.Status() {
	case scheduler.StatusSucceeded:
		r.summary.Succeeded++
	case scheduler.StatusPartial:
		r.summary.Partial++
	case scheduler.StatusFailed:
		if res.Failure.Retriable {
			r.summary.RetriableFailures++
		} else {
			r.summary.PermanentFailures++
		}
		r.summary.Failures = append(r.summary.Failures, ItemFailure{
			Key:       item.Key(),
			Reason:    res.Failure.Reason,
			Retriable: res.Failure.Retriable,
		})
	}
	if res.Success != nil {
		r.summary.BytesWritten += int64(len(res.Success.Assembly) + len(res.Success.Explanation) + len(item.File.Text))
	}
}

func (r *Runner) countCancelled() {
	r.mu.Lock()
	r.summary.Cancelled++
	r.mu.Unlock()
}

func (r *Runner) publish(topic events.Topic, evt events.Event) {
	if r.config.EventBus != nil {
		r.config.EventBus.Publish(topic, evt)
	}
}

func (r *Runner) beginJournal(ctx context.Context, start time.Time) {
	if r.config.Store == nil {
		return
	}
	err := r.config.Store.BeginRun(ctx, persistence.Run{
		ID:         r.summary.RunID,
		SourceRoot: r.config.SourceRoot,
		OutputRoot: r.config.OutputRoot,
		StartedAt:  start,
		Total:      r.summary.Total,
		Cached:     r.summary.Cached,
	})
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to journal run start")
	}
}

func (r *Runner) finishJournal(ctx context.Context) {
	if r.config.Store == nil {
		return
	}
	totals := persistence.RunTotals{
		Succeeded:       r.summary.Succeeded,
		Partial:         r.summary.Partial,
		FailedRetriable: r.summary.RetriableFailures,
		FailedPermanent: r.summary.PermanentFailures,
		Cancelled:       r.summary.Cancelled,
	}
	if err := r.config.Store.FinishRun(context.WithoutCancel(ctx), r.summary.RunID, time.Now(), totals); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to journal run completion")
	}
}
