package tracing

import (
	"go.uber.org/fx"
)

// Module contributes the tracing progress listener to the "progressListeners" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewTracingProgressListener, fx.ResultTags(`group:"progressListeners"`))),
)
