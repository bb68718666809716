package metrics

import (
	"context"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

// Tracer is the distributed tracing port. Every Start method returns a context carrying the
// new span and a function ending it; call the function in a defer.
type Tracer interface {
	StartRunSpan(ctx context.Context, processor, runID string) (context.Context, func())
	StartPhaseSpan(ctx context.Context, phase model.Phase) (context.Context, func())
	StartSpan(ctx context.Context, name string, attributes map[string]interface{}) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
