// Package logging provides a progress listener that writes run progress to the process logger.
package logging

import (
	"context"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
	logger "github.com/tigerroll/congresso/pkg/batch/support/util/logger"
)

// LoggingProgressListener logs progress events. Lifecycle events are logged at INFO,
// fine-grained phase progress at DEBUG.
type LoggingProgressListener struct{}

func NewLoggingProgressListener() processor.ProgressListener {
	return &LoggingProgressListener{}
}

func (l *LoggingProgressListener) OnProgress(ctx context.Context, event model.ProgressEvent) {
	log := logger.With("processor", event.Processor, "run", event.RunID, "percent", event.Percent)
	switch event.Status {
	case model.ProgressStarted, model.ProgressDone:
		log.Infof("Progress: %s - %s", event.Status, event.Message)
	case model.ProgressError:
		log.Errorf("Progress: %s - %s", event.Status, event.Message)
	case model.ProgressCancelled:
		log.Warnf("Progress: %s - %s", event.Status, event.Message)
	default:
		log.Debugf("Progress: %s %d%% - %s", event.Status, event.Percent, event.Message)
	}
}

var _ processor.ProgressListener = (*LoggingProgressListener)(nil)
