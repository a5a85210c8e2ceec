// Package metrics defines the Prometheus metric collectors used across the
// detector and syndicator services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ClassificationsTotal  *prometheus.CounterVec
	ClassificationLatency *prometheus.HistogramVec
	IndexEntries          *prometheus.GaugeVec
	ExpiredKeysTotal      *prometheus.CounterVec
	SweepsTotal           prometheus.Counter

	RecoveriesTotal        *prometheus.CounterVec
	RecoveredDocsTotal     *prometheus.CounterVec
	RecoveryDuration       *prometheus.HistogramVec
	SnapshotLoadsTotal     *prometheus.CounterVec
	SnapshotSavesTotal     *prometheus.CounterVec
	SnapshotSizeBytes      *prometheus.GaugeVec
	LSHIndexesCreatedTotal prometheus.Counter

	DocumentsConsumedTotal    prometheus.Counter
	FailedConsumeTotal        prometheus.Counter
	DetectorRequestErrors     prometheus.Counter
	DetectorBadResponsesTotal prometheus.Counter
	DistributedTotal          prometheus.Counter
	FailedDistributionTotal   prometheus.Counter
	QueueDepth                prometheus.Gauge
	ThrottleActive            prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ClassificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifications_total",
				Help: "Total classification decisions by status (duplicate, similarity, unique, duplicate_keys, indeterminate).",
			},
			[]string{"status", "language"},
		),
		ClassificationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classification_latency_seconds",
				Help:    "Classification latency in seconds, signature computation included.",
				Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"language"},
		),
		IndexEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lsh_index_entries",
				Help: "Number of live entries per language shard.",
			},
			[]string{"language"},
		),
		ExpiredKeysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lsh_expired_keys_total",
				Help: "Total entries evicted by TTL sweeps per language shard.",
			},
			[]string{"language"},
		),
		SweepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lsh_sweeps_total",
				Help: "Total TTL sweep passes across all shards.",
			},
		),
		RecoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recoveries_total",
				Help: "Cold-start recovery runs by outcome (complete, partial, empty).",
			},
			[]string{"outcome"},
		),
		RecoveredDocsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recovered_documents_total",
				Help: "Documents loaded into shards by the recovery pipeline.",
			},
			[]string{"language"},
		),
		RecoveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recovery_duration_seconds",
				Help:    "Wall-clock duration of recovery runs.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"language"},
		),
		SnapshotLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_loads_total",
				Help: "Snapshot load attempts by outcome (ok, miss, corrupt, error).",
			},
			[]string{"outcome"},
		),
		SnapshotSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_saves_total",
				Help: "Snapshot save attempts by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		SnapshotSizeBytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "snapshot_size_bytes",
				Help: "Size of the last serialised shard snapshot.",
			},
			[]string{"language"},
		),
		LSHIndexesCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lsh_indexes_created_total",
				Help: "Shards built from scratch because no usable snapshot existed.",
			},
		),
		DocumentsConsumedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_consumed_total",
				Help: "Crawled articles consumed from the queue.",
			},
		),
		FailedConsumeTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "failed_consume_total",
				Help: "Articles that could not be decoded or processed.",
			},
		),
		DetectorRequestErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "detector_request_errors_total",
				Help: "Transport-level failures calling the detector service.",
			},
		),
		DetectorBadResponsesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "detector_bad_responses_total",
				Help: "Non-2xx responses from the detector service.",
			},
		),
		DistributedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_distributed_total",
				Help: "Classified documents republished downstream.",
			},
		),
		FailedDistributionTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "documents_failed_distribution_total",
				Help: "Documents that could not be republished downstream.",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawled_queue_depth",
				Help: "Observed backlog of the crawled-article queue.",
			},
		),
		ThrottleActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ingest_throttle_active",
				Help: "1 when the queue depth monitor has raised the throttle flag.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ClassificationsTotal,
		m.ClassificationLatency,
		m.IndexEntries,
		m.ExpiredKeysTotal,
		m.SweepsTotal,
		m.RecoveriesTotal,
		m.RecoveredDocsTotal,
		m.RecoveryDuration,
		m.SnapshotLoadsTotal,
		m.SnapshotSavesTotal,
		m.SnapshotSizeBytes,
		m.LSHIndexesCreatedTotal,
		m.DocumentsConsumedTotal,
		m.FailedConsumeTotal,
		m.DetectorRequestErrors,
		m.DetectorBadResponsesTotal,
		m.DistributedTotal,
		m.FailedDistributionTotal,
		m.QueueDepth,
		m.ThrottleActive,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
