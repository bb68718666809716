package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/congresso/pkg/batch/listener/logging"
	"github.com/tigerroll/congresso/pkg/batch/listener/tracing"
)

// Module aggregates all progress listener modules.
var Module = fx.Options(
	logging.Module,
	tracing.Module,
)
