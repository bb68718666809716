// Package tracing provides a progress listener that records progress events on the current span.
package tracing

import (
	"context"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/core/metrics"
	"github.com/tigerroll/congresso/pkg/batch/core/processor"
)

// TracingProgressListener adds one span event per progress event.
type TracingProgressListener struct {
	tracer metrics.Tracer
}

func NewTracingProgressListener(tracer metrics.Tracer) processor.ProgressListener {
	return &TracingProgressListener{tracer: tracer}
}

func (l *TracingProgressListener) OnProgress(ctx context.Context, event model.ProgressEvent) {
	l.tracer.RecordEvent(ctx, "progress", map[string]interface{}{
		"progress.status":  string(event.Status),
		"progress.percent": event.Percent,
		"progress.message": event.Message,
		"run.id":           event.RunID,
	})
}

var _ processor.ProgressListener = (*TracingProgressListener)(nil)
