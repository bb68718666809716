// Package metrics provides the Prometheus recorder and the OpenTelemetry tracer of the engine
// and wires them into the fx lifecycle.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/fx"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// Params are the dependencies of the observability providers.
type Params struct {
	fx.In
	Lifecycle fx.Lifecycle
	Config    *config.Config
}

// NewMetricRecorderProvider returns a PrometheusRecorder when metrics are enabled and a
// no-op recorder otherwise. The optional HTTP endpoint and the textfile export follow the
// application lifecycle.
func NewMetricRecorderProvider(p Params) metrics.MetricRecorder {
	mc := p.Config.Congresso.Metrics
	if !mc.Enabled {
		return metrics.NewNoOpMetricRecorder()
	}
	rec := NewPrometheusRecorder()

	if mc.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		srv := &http.Server{Addr: mc.ListenAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				ln, err := net.Listen("tcp", mc.ListenAddress)
				if err != nil {
					return errors.Wrapf(err, "failed to listen on %s", mc.ListenAddress)
				}
				go func() {
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Errorf("Metrics endpoint stopped: %v", err)
					}
				}()
				logger.Infof("Metrics exposed on %s/metrics", mc.ListenAddress)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}
	if mc.TextfilePath != "" {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if err := rec.WriteTextfile(mc.TextfilePath); err != nil {
					return errors.Wrapf(err, "failed to write metrics to %s", mc.TextfilePath)
				}
				logger.Debugf("Metrics written to %s", mc.TextfilePath)
				return nil
			},
		})
	}
	return rec
}

// NewTracerProvider builds the tracer and flushes it on stop.
func NewTracerProvider(p Params) (metrics.Tracer, error) {
	tracer, err := NewOpenTelemetryTracer(context.Background(), p.Config.Congresso.Tracing)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{OnStop: tracer.Shutdown})
	return tracer, nil
}

// Module provides metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorderProvider),
	fx.Provide(NewTracerProvider),
)
