// Package app wires the congresso processors into an fx application.
package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/fx"

	"github.com/tigerroll/congresso/pkg/batch/adapter/docstore/resolver"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	inframetrics "github.com/tigerroll/congresso/pkg/batch/infrastructure/metrics"
	batchlistener "github.com/tigerroll/congresso/pkg/batch/listener"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// Invocation is one command-line request.
type Invocation struct {
	Processor      string
	Options        model.RunOptionsInput
	EnvFilePath    string
	ConfigFilePath string
	EmbeddedConfig config.EmbeddedConfig
	Overrides      config.Overrides
}

// outcome carries the result of the run out of the fx graph.
type outcome struct {
	result *model.ProcessingResult
	err    error
	done   chan struct{}
}

const stopTimeout = 30 * time.Second

// RunApplication builds the fx graph, runs the requested processor once and shuts the graph
// down, flushing metrics and closing the stores.
func RunApplication(appCtx context.Context, inv Invocation) (*model.ProcessingResult, error) {
	out := &outcome{done: make(chan struct{})}
	overrides := inv.Overrides

	app := fx.New(
		fx.Supply(
			inv.EmbeddedConfig,
			&overrides,
			inv,
			out,
			fx.Annotate(inv.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(inv.ConfigFilePath, fx.ResultTags(`name:"configFilePath"`)),
			fx.Annotate(
				appCtx,
				fx.As(new(context.Context)),
				fx.ResultTags(`name:"appCtx"`),
			),
		),
		logger.Module,
		config.Module,
		inframetrics.Module,
		resolver.Module,
		batchlistener.Module,
		Module,

		fx.Invoke(fx.Annotate(startRun, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // runner *Runner
			"",              // inv Invocation
			"",              // out *outcome
			`name:"appCtx"`, // appCtx context.Context
		))),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}

	startCtx, cancelStart := context.WithTimeout(appCtx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return nil, errors.Wrap(err, "failed to start application")
	}

	select {
	case <-out.done:
	case sig := <-app.Wait():
		logger.Debugf("Application received %s, waiting for the run to stop.", sig)
		<-out.done
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		logger.Errorf("Application shutdown failed: %v", err)
	}
	return out.result, out.err
}

// startRun is invoked by Fx to launch the run once the lifecycle has started.
func startRun(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	runner *Runner,
	inv Invocation,
	out *outcome,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer close(out.done)
				defer func() {
					if r := recover(); r != nil {
						out.err = errors.Newf("run panicked: %v", r)
						logger.Errorf("Panic recovered in run: %v", r)
					}
					code := 1
					if out.result != nil {
						code = out.result.Status.ExitCode()
					}
					if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
						logger.Debugf("Shutdown request ignored: %v", err)
					}
				}()
				out.result, out.err = runner.Run(appCtx, inv.Processor, inv.Options)
			}()
			return nil
		},
	})
}
