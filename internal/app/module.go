package app

import (
	"go.uber.org/fx"

	"github.com/tigerroll/congresso/internal/legis"
	"github.com/tigerroll/congresso/pkg/batch/core/config"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
)

// NewSourcesProvider builds the API readers shared by every processor.
func NewSourcesProvider(cfg *config.Config, recorder metrics.MetricRecorder, tracer metrics.Tracer) (legis.Sources, error) {
	return legis.NewSources(cfg, recorder, tracer)
}

// Module provides the API sources and the Runner.
var Module = fx.Options(
	fx.Provide(NewSourcesProvider),
	fx.Provide(NewRunner),
)
