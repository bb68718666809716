package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/congresso/pkg/batch/core/metrics"
)

const namespace = "congresso"

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	runDurationSeconds   *prometheus.HistogramVec
	runStatusCounter     *prometheus.CounterVec
	phaseDurationSeconds *prometheus.HistogramVec
	itemCounter          *prometheus.CounterVec
	apiRequestCounter    *prometheus.CounterVec
	apiDurationSeconds   *prometheus.HistogramVec
	retryCounter         *prometheus.CounterVec
	commitCounter        *prometheus.CounterVec
	commitOperations     *prometheus.CounterVec
	commitDuration       *prometheus.HistogramVec
	droppedDocuments     *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder backed by its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of processor runs.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"processor", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_total",
			Help:      "Total number of processor runs by status.",
		}, []string{"processor", "status"}),
		phaseDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of processor phases.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"processor", "phase", "result"}),
		itemCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Work items by outcome.",
		}, []string{"processor", "outcome"}),
		apiRequestCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Upstream API requests by status code (0 for transport errors).",
		}, []string{"family", "endpoint", "code"}),
		apiDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Upstream API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family", "endpoint"}),
		retryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retried attempts by operation.",
		}, []string{"operation"}),
		commitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_commits_total",
			Help:      "Store batch commits by result.",
		}, []string{"store", "result"}),
		commitOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_operations_total",
			Help:      "Operations sent to the store by commit result.",
		}, []string{"store", "result"}),
		commitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_commit_duration_seconds",
			Help:      "Store batch commit latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store"}),
		droppedDocuments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_dropped_total",
			Help:      "Documents dropped by the batch writer.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		r.runDurationSeconds, r.runStatusCounter, r.phaseDurationSeconds, r.itemCounter,
		r.apiRequestCounter, r.apiDurationSeconds, r.retryCounter,
		r.commitCounter, r.commitOperations, r.commitDuration, r.droppedDocuments,
	)
	return r
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordRunStart is a no-op for Prometheus; runs are counted when they end.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, processor string) {}

// RecordRunEnd records the run duration and status.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, result *model.ProcessingResult) {
	if result == nil {
		return
	}
	status := string(result.Status)
	r.runStatusCounter.WithLabelValues(result.Processor, status).Inc()
	r.runDurationSeconds.WithLabelValues(result.Processor, status).Observe(result.Duration.Seconds())
}

// RecordPhase records one phase duration.
func (r *PrometheusRecorder) RecordPhase(ctx context.Context, processor string, phase model.Phase, duration time.Duration, err error) {
	r.phaseDurationSeconds.WithLabelValues(processor, string(phase), resultLabel(err)).Observe(duration.Seconds())
}

// RecordItems counts work items by outcome.
func (r *PrometheusRecorder) RecordItems(ctx context.Context, processor, outcome string, count int) {
	if count <= 0 {
		return
	}
	r.itemCounter.WithLabelValues(processor, outcome).Add(float64(count))
}

// RecordAPIRequest records one upstream request.
func (r *PrometheusRecorder) RecordAPIRequest(ctx context.Context, family, endpoint string, status int, duration time.Duration) {
	r.apiRequestCounter.WithLabelValues(family, endpoint, strconv.Itoa(status)).Inc()
	r.apiDurationSeconds.WithLabelValues(family, endpoint).Observe(duration.Seconds())
}

// RecordRetry counts a retried attempt.
func (r *PrometheusRecorder) RecordRetry(ctx context.Context, operation string, attempt int) {
	r.retryCounter.WithLabelValues(operation).Inc()
}

// RecordBatchCommit records a store commit.
func (r *PrometheusRecorder) RecordBatchCommit(ctx context.Context, store string, count int, duration time.Duration, err error) {
	res := resultLabel(err)
	r.commitCounter.WithLabelValues(store, res).Inc()
	r.commitOperations.WithLabelValues(store, res).Add(float64(count))
	r.commitDuration.WithLabelValues(store).Observe(duration.Seconds())
}

// RecordDocumentDropped counts a dropped document.
func (r *PrometheusRecorder) RecordDocumentDropped(ctx context.Context, reason string) {
	r.droppedDocuments.WithLabelValues(reason).Inc()
}

// Registry returns the registry holding every collector of the recorder.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// WriteTextfile writes the registry for the node exporter textfile collector.
func (r *PrometheusRecorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
