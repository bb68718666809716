package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards every metric.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() *NoOpMetricRecorder {
	return &NoOpMetricRecorder{}
}

func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, processor string)              {}
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, result *model.ProcessingResult) {}
func (r *NoOpMetricRecorder) RecordPhase(ctx context.Context, processor string, phase model.Phase, duration time.Duration, err error) {
}
func (r *NoOpMetricRecorder) RecordItems(ctx context.Context, processor, outcome string, count int) {}
func (r *NoOpMetricRecorder) RecordAPIRequest(ctx context.Context, family, endpoint string, status int, duration time.Duration) {
}
func (r *NoOpMetricRecorder) RecordRetry(ctx context.Context, label string, attempt int) {}
func (r *NoOpMetricRecorder) RecordBatchCommit(ctx context.Context, store string, count int, duration time.Duration, err error) {
}
func (r *NoOpMetricRecorder) RecordDocumentDropped(ctx context.Context, reason string) {}

// NoOpTracer creates no spans.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

func (t *NoOpTracer) StartRunSpan(ctx context.Context, processor, runID string) (context.Context, func()) {
	return ctx, func() {}
}
func (t *NoOpTracer) StartPhaseSpan(ctx context.Context, phase model.Phase) (context.Context, func()) {
	return ctx, func() {}
}
func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func()) {
	return ctx, func() {}
}
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error)                     {}
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var (
	_ MetricRecorder = (*NoOpMetricRecorder)(nil)
	_ Tracer         = (*NoOpTracer)(nil)
)
