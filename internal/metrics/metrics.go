// Package metrics builds the pull-based Prometheus metrics the core
// exposes, using promauto vector construction registered against a
// registry owned by each Metrics instance instead of the global default
// one so tests can construct isolated instances.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets are the histogram boundaries (seconds) for
// health_check_latency_seconds.
var latencyBuckets = []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0}

// Metrics is the container of all counters/histograms/gauges the core
// updates while running.
type Metrics struct {
	registry *prometheus.Registry

	HealthChecksTotal    *prometheus.CounterVec
	HealthCheckLatency   *prometheus.HistogramVec
	ServicesFailing      prometheus.Gauge
	HealthCheckErrors    *prometheus.CounterVec
	WorkerPoolSize       prometheus.Gauge
	WorkerTasksCompleted prometheus.Counter
	CSVWritesTotal       *prometheus.CounterVec
	CSVRecordsWritten    prometheus.Counter

	BuildInfo            *prometheus.GaugeVec
	OrchestratorTickTime prometheus.Histogram
}

// New constructs a Metrics container registered against a fresh,
// isolated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		HealthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_checks_total",
				Help: "Total number of health check probes executed.",
			},
			[]string{"service_name", "status"},
		),

		HealthCheckLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "health_check_latency_seconds",
				Help:    "Observed latency of health check probes.",
				Buckets: latencyBuckets,
			},
			[]string{"service_name"},
		),

		ServicesFailing: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "services_failing",
				Help: "Number of services currently in a DOWN state.",
			},
		),

		HealthCheckErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_check_errors_total",
				Help: "Total number of transport-level probe failures by classified error type.",
			},
			[]string{"service_name", "error_type"},
		),

		WorkerPoolSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "worker_pool_size",
				Help: "Configured worker pool concurrency.",
			},
		),

		WorkerTasksCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "worker_tasks_completed_total",
				Help: "Total number of probe jobs completed by the worker pool.",
			},
		),

		CSVWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "csv_writes_total",
				Help: "Total number of history-file write attempts by outcome.",
			},
			[]string{"status"},
		),

		CSVRecordsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "csv_records_written_total",
				Help: "Total number of records appended to the history file.",
			},
		),

		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "healthwatch_build_info",
				Help: "Always 1; labeled with the running build's version.",
			},
			[]string{"version"},
		),

		OrchestratorTickTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "healthwatch_orchestrator_tick_duration_seconds",
				Help:    "Wall time of one scheduler tick loop iteration.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	return m
}

// SetBuildInfo sets the build-info gauge to 1 for the given version.
func (m *Metrics) SetBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}

// RecordProbe records the outcome of one persisted probe result.
func (m *Metrics) RecordProbe(serviceName, status string, latency time.Duration) {
	m.HealthChecksTotal.WithLabelValues(serviceName, status).Inc()
	m.HealthCheckLatency.WithLabelValues(serviceName).Observe(latency.Seconds())
}

// RecordError increments the error-by-type counter for a transport
// failure classified during a probe attempt.
func (m *Metrics) RecordError(serviceName, errorType string) {
	m.HealthCheckErrors.WithLabelValues(serviceName, errorType).Inc()
}

// SetServicesFailing updates the failing-count gauge, evaluated at
// snapshot time.
func (m *Metrics) SetServicesFailing(count int) {
	m.ServicesFailing.Set(float64(count))
}

// RecordWorkerTaskCompleted increments the worker-completion counter.
func (m *Metrics) RecordWorkerTaskCompleted() {
	m.WorkerTasksCompleted.Inc()
}

// RecordCSVWrite increments the CSV-write outcome counter and, on
// success, the per-record counter.
func (m *Metrics) RecordCSVWrite(success bool, records int) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.CSVWritesTotal.WithLabelValues(status).Inc()
	if success {
		m.CSVRecordsWritten.Add(float64(records))
	}
}

// RecordTick observes the wall time of one orchestrator tick iteration.
func (m *Metrics) RecordTick(d time.Duration) {
	m.OrchestratorTickTime.Observe(d.Seconds())
}

// Handler returns the HTTP handler serving this Metrics instance's
// registry in the standard Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
