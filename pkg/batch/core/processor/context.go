package processor

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// ProgressListener receives the progress events of a run. Listeners are called
// synchronously, in registration order, from the goroutine that emitted the event. A listener
// must not emit progress itself.
type ProgressListener interface {
	OnProgress(ctx context.Context, event model.ProgressEvent)
}

// ProgressListenerFunc adapts a function to ProgressListener.
type ProgressListenerFunc func(ctx context.Context, event model.ProgressEvent)

// OnProgress calls f.
func (f ProgressListenerFunc) OnProgress(ctx context.Context, event model.ProgressEvent) {
	f(ctx, event)
}

// ContextOption customizes a ProcessingContext.
type ContextOption func(*ProcessingContext)

// WithListeners registers progress listeners.
func WithListeners(listeners ...ProgressListener) ContextOption {
	return func(pc *ProcessingContext) {
		for _, l := range listeners {
			if l != nil {
				pc.listeners = append(pc.listeners, l)
			}
		}
	}
}

// WithObservability sets the metric recorder and the tracer. Nil values keep the no-op defaults.
func WithObservability(recorder metrics.MetricRecorder, tracer metrics.Tracer) ContextOption {
	return func(pc *ProcessingContext) {
		if recorder != nil {
			pc.recorder = recorder
		}
		if tracer != nil {
			pc.tracer = tracer
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(runID string) ContextOption {
	return func(pc *ProcessingContext) {
		if runID != "" {
			pc.runID = runID
		}
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) ContextOption {
	return func(pc *ProcessingContext) {
		if now != nil {
			pc.now = now
		}
	}
}

// ProcessingContext carries the run options, the shared counters and the progress sink of
// one run. The increment methods are the only way processors mutate the counters; they are
// safe for concurrent use by fan-out workers.
type ProcessingContext struct {
	runID     string
	options   model.RunOptions
	stats     *model.ProcessingStats
	listeners []ProgressListener
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	now       func() time.Time

	// emitMu orders deliveries so listeners see percent values in emission order.
	emitMu sync.Mutex

	mu        sync.Mutex
	processor string
	state     model.ProcessorState
	emitted   model.ProgressStatus
	percent   int
}

// NewProcessingContext creates the context of one run.
func NewProcessingContext(options model.RunOptions, opts ...ContextOption) *ProcessingContext {
	pc := &ProcessingContext{
		runID:    model.NewRunID(),
		options:  options,
		stats:    model.NewProcessingStats(),
		recorder: metrics.NewNoOpMetricRecorder(),
		tracer:   metrics.NewNoOpTracer(),
		now:      time.Now,
		state:    model.StateCreated,
	}
	for _, opt := range opts {
		opt(pc)
	}
	return pc
}

func (pc *ProcessingContext) RunID() string                    { return pc.runID }
func (pc *ProcessingContext) Options() model.RunOptions        { return pc.options }
func (pc *ProcessingContext) Recorder() metrics.MetricRecorder { return pc.recorder }
func (pc *ProcessingContext) Tracer() metrics.Tracer           { return pc.tracer }

// Stats returns a snapshot of the counters.
func (pc *ProcessingContext) Stats() model.StatsSnapshot {
	return pc.stats.Snapshot()
}

// Processor returns the name of the processor bound by Run.
func (pc *ProcessingContext) Processor() string {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.processor
}

// State returns the current lifecycle state.
func (pc *ProcessingContext) State() model.ProcessorState {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.state
}

func (pc *ProcessingContext) transition(to model.ProcessorState) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	next, err := pc.state.Transition(to)
	if err != nil {
		return err
	}
	pc.state = next
	return nil
}

// SetTotal declares the number of work items (e.g. legislators) of the run. Successes plus
// failures never exceed it.
func (pc *ProcessingContext) SetTotal(n int) {
	pc.stats.SetTotal(n)
}

// IncrementSuccesses counts n successful work items.
func (pc *ProcessingContext) IncrementSuccesses(n int) {
	pc.countOutcome(metrics.OutcomeSuccess, n, pc.stats.AddSuccesses)
}

// IncrementFailures counts n failed work items.
func (pc *ProcessingContext) IncrementFailures(n int) {
	pc.countOutcome(metrics.OutcomeFailure, n, pc.stats.AddFailures)
}

func (pc *ProcessingContext) countOutcome(outcome string, n int, add func(int) bool) {
	if n <= 0 {
		return
	}
	if !add(n) {
		logger.Warnf("[%s] %d %s(s) ignored: the run declared %d work items", pc.Processor(), n, outcome, pc.stats.Snapshot().Total)
		return
	}
	pc.recorder.RecordItems(context.Background(), pc.Processor(), outcome, n)
}

// IncrementWarnings counts n warnings.
func (pc *ProcessingContext) IncrementWarnings(n int) {
	if n <= 0 {
		return
	}
	pc.stats.AddWarnings(n)
	pc.recorder.RecordItems(context.Background(), pc.Processor(), metrics.OutcomeWarning, n)
}

// AddExtracted counts extracted records.
func (pc *ProcessingContext) AddExtracted(n int) { pc.stats.AddExtracted(n) }

// AddTransformed counts transformed records.
func (pc *ProcessingContext) AddTransformed(n int) { pc.stats.AddTransformed(n) }

// AddLoaded counts documents accepted by the store.
func (pc *ProcessingContext) AddLoaded(n int) { pc.stats.AddLoaded(n) }

// AddLost counts documents discarded with a failed batch commit. A run with lost documents
// ends partial.
func (pc *ProcessingContext) AddLost(n int) { pc.stats.AddLost(n) }

// EmitProgress publishes a progress event to every listener. percent is clamped to 0..100
// and never drops below the last emitted value.
// Once DONE, ERROR or CANCELLED was emitted, further events are dropped.
func (pc *ProcessingContext) EmitProgress(status model.ProgressStatus, percent int, message string) {
	pc.emit(context.Background(), status, percent, message)
}

func (pc *ProcessingContext) emit(ctx context.Context, status model.ProgressStatus, percent int, message string) {
	pc.emitMu.Lock()
	defer pc.emitMu.Unlock()
	pc.mu.Lock()
	switch pc.emitted {
	case model.ProgressDone, model.ProgressError, model.ProgressCancelled:
		pc.mu.Unlock()
		return
	}
	pc.emitted = status
	if p := model.ClampPercent(percent); p > pc.percent {
		pc.percent = p
	}
	event := model.ProgressEvent{
		RunID:     pc.runID,
		Processor: pc.processor,
		Status:    status,
		Percent:   pc.percent,
		Message:   message,
		Time:      pc.now(),
	}
	listeners := pc.listeners
	pc.mu.Unlock()

	for _, l := range listeners {
		notify(ctx, l, event)
	}
}

func notify(ctx context.Context, l ProgressListener, event model.ProgressEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("progress listener panicked on %s: %v", event.Status, r)
		}
	}()
	l.OnProgress(ctx, event)
}
