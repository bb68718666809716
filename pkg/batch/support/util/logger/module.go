package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module routes fx events through the engine logger and exposes the zap logger to the graph.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
	fx.Provide(func() *zap.Logger { return L() }),
)
