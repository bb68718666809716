// Package metrics defines the observability ports of the engine: a metric recorder and a tracer.
// Implementations live in pkg/batch/infrastructure/metrics.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

// Item outcomes used as metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeWarning = "warning"
)

// MetricRecorder records metrics of processor runs.
type MetricRecorder interface {
	// RecordRunStart records the start of a processor run.
	RecordRunStart(ctx context.Context, processor string)

	// RecordRunEnd records the final result of a run.
	RecordRunEnd(ctx context.Context, result *model.ProcessingResult)

	// RecordPhase records the duration of a phase. err is nil when the phase completed.
	RecordPhase(ctx context.Context, processor string, phase model.Phase, duration time.Duration, err error)

	// RecordItems counts work items by outcome (OutcomeSuccess, OutcomeFailure, OutcomeWarning).
	RecordItems(ctx context.Context, processor, outcome string, count int)

	// RecordAPIRequest records one upstream HTTP request. status is 0 on transport failures.
	RecordAPIRequest(ctx context.Context, family, endpoint string, status int, duration time.Duration)

	// RecordRetry records a retried attempt of the labelled operation.
	RecordRetry(ctx context.Context, label string, attempt int)

	// RecordBatchCommit records a store commit of count operations.
	RecordBatchCommit(ctx context.Context, store string, count int, duration time.Duration, err error)

	// RecordDocumentDropped records a write dropped by the batch writer.
	RecordDocumentDropped(ctx context.Context, reason string)
}
