package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/congresso/internal/legis"
	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore/resolver"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// RunnerParams are the dependencies of NewRunner.
type RunnerParams struct {
	fx.In
	Config    *config.Config
	Sources   legis.Sources
	Resolver  *resolver.StoreResolver
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	Listeners []processor.ProgressListener `group:"progressListeners"`
}

// Runner launches one processor run against the configured stores.
type Runner struct {
	cfg       *config.Config
	sources   legis.Sources
	resolver  *resolver.StoreResolver
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	listeners []processor.ProgressListener
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) *Runner {
	return &Runner{
		cfg:       p.Config,
		sources:   p.Sources,
		resolver:  p.Resolver,
		recorder:  p.Recorder,
		tracer:    p.Tracer,
		listeners: p.Listeners,
	}
}

// Run validates the options, opens the destination store and runs the named processor.
// An error is returned only when the run could not be set up; the outcome of a run that
// started is always in the result.
func (r *Runner) Run(ctx context.Context, name string, in model.RunOptionsInput) (*model.ProcessingResult, error) {
	if in.Destination == "" {
		in.Destination = model.Destination(r.cfg.Congresso.Batch.DefaultDestination)
	}
	opts, err := model.NewRunOptions(in)
	if err != nil {
		return nil, err
	}
	store, err := r.resolver.ForDestination(ctx, opts.Destination())
	if err != nil {
		return nil, err
	}
	job, err := legis.NewJob(name, legis.Deps{Config: r.cfg, Sources: r.sources, Store: store})
	if err != nil {
		return nil, err
	}

	pc := processor.NewProcessingContext(opts,
		processor.WithListeners(r.listeners...),
		processor.WithObservability(r.recorder, r.tracer),
	)
	logger.Debugf("Run %s: %s into %s (%s)", pc.RunID(), name, opts.Destination(), store.Name())
	return job(ctx, pc), nil
}
