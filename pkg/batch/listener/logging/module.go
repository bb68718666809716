package logging

import (
	"go.uber.org/fx"
)

// Module contributes the logging progress listener to the "progressListeners" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingProgressListener, fx.ResultTags(`group:"progressListeners"`))),
)
