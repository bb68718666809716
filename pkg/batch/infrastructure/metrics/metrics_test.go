package metrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tigerroll/congresso/pkg/batch/core/config"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
)

func TestPrometheusRecorderCounts(t *testing.T) {
	r := NewPrometheusRecorder()
	ctx := context.Background()

	r.RecordItems(ctx, "discursos", "success", 3)
	r.RecordItems(ctx, "discursos", "warning", 1)
	r.RecordItems(ctx, "discursos", "failure", 0)
	r.RecordAPIRequest(ctx, "camara", "deputados.discursos", 200, 20*time.Millisecond)
	r.RecordAPIRequest(ctx, "camara", "deputados.discursos", 404, 10*time.Millisecond)
	r.RecordBatchCommit(ctx, "memory", 250, time.Millisecond, nil)
	r.RecordBatchCommit(ctx, "memory", 3, time.Millisecond, errors.New("timeout"))
	r.RecordDocumentDropped(ctx, "oversized")
	r.RecordRunEnd(ctx, &model.ProcessingResult{Processor: "discursos", Status: model.ResultPartial, Duration: time.Second})

	assert.Equal(t, 3.0, testutil.ToFloat64(r.itemCounter.WithLabelValues("discursos", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.itemCounter.WithLabelValues("discursos", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.apiRequestCounter.WithLabelValues("camara", "deputados.discursos", "404")))
	assert.Equal(t, 250.0, testutil.ToFloat64(r.commitOperations.WithLabelValues("memory", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.commitCounter.WithLabelValues("memory", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.droppedDocuments.WithLabelValues("oversized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runStatusCounter.WithLabelValues("discursos", "partial")))
}

func TestPrometheusRecorderWriteTextfile(t *testing.T) {
	r := NewPrometheusRecorder()
	r.RecordRetry(context.Background(), "camara", 2)

	path := filepath.Join(t.TempDir(), "congresso.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `congresso_retries_total{operation="camara"} 1`)
}

func TestOpenTelemetryTracerRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := NewOpenTelemetryTracerFromProvider(tp)

	ctx, endRun := tracer.StartRunSpan(context.Background(), "mesas", "run-1")
	phaseCtx, endPhase := tracer.StartPhaseSpan(ctx, model.PhaseExtract)
	tracer.RecordEvent(phaseCtx, "page_fetched", map[string]interface{}{"page": 2, "endpoint": "mesa"})
	tracer.RecordError(phaseCtx, "api", errors.New("boom"))
	endPhase()
	endRun()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "extract", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "page_fetched", spans[0].Events()[0].Name)
	assert.Equal(t, "run mesas", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].Parent().TraceID())

	require.NoError(t, tracer.Shutdown(context.Background()))
}

func TestDisabledTracerIsNoop(t *testing.T) {
	tracer, err := NewOpenTelemetryTracer(context.Background(), config.TracingConfig{Enabled: false})
	require.NoError(t, err)

	ctx, end := tracer.StartSpan(context.Background(), "x", nil)
	tracer.RecordError(ctx, "m", errors.New("ignored"))
	end()
	assert.NoError(t, tracer.Shutdown(context.Background()))

	_, err = NewOpenTelemetryTracer(context.Background(), config.TracingConfig{Enabled: true, Exporter: "zipkin"})
	assert.Error(t, err)
}
