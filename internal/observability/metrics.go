// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Refresh metrics
	UnitsProcessed  *prometheus.CounterVec // by status
	RunsTotal       *prometheus.CounterVec // by mode, status
	RunDuration     *prometheus.HistogramVec
	BarsWritten     prometheus.Counter
	EmaRowsWritten  prometheus.Counter
	DriftWarnings   prometheus.Counter
	AssetsProcessed prometheus.Counter

	// Database metrics
	DBWriteDuration *prometheus.HistogramVec
	DBWriteErrors   *prometheus.CounterVec
	WriteRetries    prometheus.Counter

	// Health metrics
	LastSuccessfulRun    prometheus.Gauge
	LastFullRecompute    prometheus.Gauge
	CheckpointsPersisted prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "timeframe_lab"
	}

	return &Metrics{
		UnitsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "units_processed_total",
			Help:      "Total number of (asset, timeframe, period) units processed by status",
		}, []string{"status"}),
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Total number of refresh runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "run_duration_seconds",
			Help:      "Refresh run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"mode"}),
		BarsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "bars_written_total",
			Help:      "Total number of bars written",
		}),
		EmaRowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "ema_rows_written_total",
			Help:      "Total number of EMA rows written",
		}),
		DriftWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "drift_warnings_total",
			Help:      "Total number of incremental-vs-full drift warnings",
		}),
		AssetsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "assets_processed_total",
			Help:      "Total number of assets processed",
		}),

		DBWriteDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "write_duration_seconds",
			Help:      "Database write duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "table"}),
		DBWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "write_errors_total",
			Help:      "Total number of database write errors",
		}, []string{"database", "table"}),
		WriteRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "write_retries_total",
			Help:      "Total number of retried batch writes",
		}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful refresh run",
		}),
		LastFullRecompute: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_full_recompute_timestamp",
			Help:      "Unix timestamp of last full recompute",
		}),
		CheckpointsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "checkpoints_persisted_total",
			Help:      "Total number of refresh-state checkpoints persisted",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
