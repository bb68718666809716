package logger

import (
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap/zapcore"
)

// FxLoggerAdapter routes fx lifecycle events through the process logger under the "fx" name.
// Routine events are logged at DEBUG, failures at ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates the fx event logger.
func NewFxLoggerAdapter() fxevent.Logger {
	return FxLoggerAdapter{}
}

// LogEvent resolves the process logger on every event so that a logger reconfigured while
// the graph is being built takes effect immediately.
func (FxLoggerAdapter) LogEvent(event fxevent.Event) {
	zl := &fxevent.ZapLogger{Logger: L().Named("fx")}
	zl.UseLogLevel(zapcore.DebugLevel)
	zl.UseErrorLevel(zapcore.ErrorLevel)
	zl.LogEvent(event)
}
