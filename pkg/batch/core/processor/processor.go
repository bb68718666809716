// Package processor implements the processor lifecycle: validate, extract, transform and
// load, run in sequence by Run with per-phase timing and error containment.
package processor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

const moduleName = "processor"

// Processor is one ETL job. E is what Extract hands to Transform and T is what Transform
// hands to Load.
type Processor[E, T any] interface {
	// Name identifies the processor in logs, metrics and results.
	Name() string
	// Validate checks the run options before any network call.
	Validate(ctx context.Context, pc *ProcessingContext) error
	Extract(ctx context.Context, pc *ProcessingContext) (E, error)
	Transform(ctx context.Context, pc *ProcessingContext, extracted E) (T, error)
	Load(ctx context.Context, pc *ProcessingContext, transformed T) error
}

// Progress percentages emitted when a phase starts.
const (
	percentExtract   = 5
	percentTransform = 60
	percentLoad      = 80
)

type phaseDef struct {
	phase    model.Phase
	state    model.ProcessorState
	progress model.ProgressStatus
	percent  int
}

var (
	validatePhase  = phaseDef{model.PhaseValidate, model.StateValidating, "", 0}
	extractPhase   = phaseDef{model.PhaseExtract, model.StateExtracting, model.ProgressExtracting, percentExtract}
	transformPhase = phaseDef{model.PhaseTransform, model.StateTransforming, model.ProgressTransforming, percentTransform}
	loadPhase      = phaseDef{model.PhaseLoad, model.StateLoading, model.ProgressLoading, percentLoad}
)

// Run drives p through its phases and always returns a result. Errors and panics of a
// phase stop the run and produce an error result carrying the counters accumulated so far.
// A cancelled ctx is reported with a CANCELLED event and an error result.
// A ProcessingContext serves a single run.
func Run[E, T any](ctx context.Context, p Processor[E, T], pc *ProcessingContext) *model.ProcessingResult {
	name := p.Name()
	pc.mu.Lock()
	pc.processor = name
	pc.mu.Unlock()

	ctx, endRun := pc.tracer.StartRunSpan(ctx, name, pc.runID)
	defer endRun()

	pc.stats.Start(pc.now())
	pc.recorder.RecordRunStart(ctx, name)
	logger.Infof("[%s] run %s started (legislature %d, destination %s)", name, pc.runID, pc.options.Legislature(), pc.options.Destination())

	r := &run{pc: pc, result: &model.ProcessingResult{RunID: pc.runID, Processor: name}}
	pc.emit(ctx, model.ProgressStarted, 0, fmt.Sprintf("%s started", name))

	var (
		extracted   E
		transformed T
	)
	err := r.phase(ctx, validatePhase, func(ctx context.Context) error {
		return p.Validate(ctx, pc)
	})
	if err == nil {
		err = r.phase(ctx, extractPhase, func(ctx context.Context) (err error) {
			extracted, err = p.Extract(ctx, pc)
			return err
		})
	}
	if err == nil {
		err = r.phase(ctx, transformPhase, func(ctx context.Context) (err error) {
			transformed, err = p.Transform(ctx, pc, extracted)
			return err
		})
	}
	if err == nil {
		err = r.phase(ctx, loadPhase, func(ctx context.Context) error {
			return p.Load(ctx, pc, transformed)
		})
	}

	result := r.finish(ctx, err)
	pc.recorder.RecordRunEnd(ctx, result)
	return result
}

type run struct {
	pc     *ProcessingContext
	result *model.ProcessingResult
}

// phase runs one phase. A cancelled context fails the phase before and after it runs.
func (r *run) phase(ctx context.Context, def phaseDef, fn func(ctx context.Context) error) error {
	pc := r.pc
	if err := ctx.Err(); err != nil {
		r.result.FailedPhase = def.phase
		return errors.Wrapf(err, "%s not started", def.phase)
	}
	if err := pc.transition(def.state); err != nil {
		r.result.FailedPhase = def.phase
		return err
	}
	if def.progress != "" {
		pc.emit(ctx, def.progress, def.percent, fmt.Sprintf("%s: %s", pc.processor, def.phase))
	}

	phaseCtx, endPhase := pc.tracer.StartPhaseSpan(ctx, def.phase)
	start := pc.now()
	err := protect(phaseCtx, def.phase, fn)
	if err == nil && ctx.Err() != nil {
		err = errors.Wrapf(ctx.Err(), "%s interrupted", def.phase)
	}
	d := pc.now().Sub(start)
	endPhase()

	r.result.Timings = append(r.result.Timings, model.PhaseTiming{Phase: def.phase, Duration: d})
	pc.recorder.RecordPhase(ctx, pc.processor, def.phase, d, err)
	if err != nil {
		pc.tracer.RecordError(phaseCtx, moduleName, err)
		r.result.FailedPhase = def.phase
		return err
	}
	logger.Debugf("[%s] %s finished in %s", pc.processor, def.phase, d)
	return nil
}

// protect converts a panic of fn into an error.
func protect(ctx context.Context, phase model.Phase, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("%s phase panicked: %v\n%s", phase, rec, debug.Stack())
			err = exception.NewBatchErrorf(moduleName, "%s phase panicked: %v", phase, rec)
		}
	}()
	return fn(ctx)
}

func (r *run) finish(ctx context.Context, err error) *model.ProcessingResult {
	pc := r.pc
	res := r.result
	ended := pc.now()
	pc.stats.Finish(ended)
	res.Stats = pc.stats.Snapshot()
	res.Duration = res.Stats.Elapsed()

	if err != nil {
		_ = pc.transition(model.StateError)
		res.Status = model.ResultError
		res.State = model.StateError
		res.Error = err.Error()
		res.Hint = exception.Hints(err)
		res.Cancelled = errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		if res.Cancelled {
			logger.Warnf("[%s] run %s cancelled during %s", pc.processor, pc.runID, res.FailedPhase)
			pc.emit(ctx, model.ProgressCancelled, 100, "cancelled")
		} else {
			logger.Errorf("[%s] %s failed: %v", pc.processor, res.FailedPhase, err)
			pc.emit(ctx, model.ProgressError, 100, res.Error)
		}
		return res
	}

	_ = pc.transition(model.StateFinished)
	res.State = model.StateFinished
	res.Status = model.ResultSuccess
	if res.Stats.Failures > 0 || res.Stats.Lost > 0 {
		res.Status = model.ResultPartial
	}
	logger.Infof("[%s] run %s finished with status %s in %s (successes=%d failures=%d warnings=%d)",
		pc.processor, pc.runID, res.Status, res.Duration, res.Stats.Successes, res.Stats.Failures, res.Stats.Warnings)
	pc.emit(ctx, model.ProgressDone, 100, string(res.Status))
	return res
}
