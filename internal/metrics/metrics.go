// Package metrics provides Prometheus instrumentation for Vaultbox.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vaultbox"

// Metrics holds all collectors. Each instance owns its registry so that
// several instances (e.g. in tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth
	LoginAttempts *prometheus.CounterVec

	// Files
	UploadedBytes  prometheus.Counter
	UploadedFiles  prometheus.Counter
	DeletedObjects *prometheus.CounterVec

	// Reconciliation
	ReconcileRuns          prometheus.Counter
	ReconcileDuration      prometheus.Histogram
	ReconcileObjectsPurged prometheus.Counter
	ReconcileOrphanOwners  prometheus.Gauge
	ReconcileLastRunTime   prometheus.Gauge
}

// New creates a Metrics instance with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		UploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes accepted by uploads.",
		}),
		UploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_files_total",
			Help:      "Total files accepted by uploads.",
		}),
		DeletedObjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_objects_total",
			Help:      "Objects deleted, by reason.",
		}, []string{"reason"}),
		ReconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Completed orphan reconciliation runs.",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of orphan reconciliation runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconcileObjectsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_objects_purged_total",
			Help:      "Objects removed because their owner no longer exists.",
		}),
		ReconcileOrphanOwners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_orphan_owners",
			Help:      "Orphaned owners found by the last run.",
		}),
		ReconcileLastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_last_run_timestamp_seconds",
			Help:      "Unix time of the last reconciliation run.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginAttempts,
		m.UploadedBytes,
		m.UploadedFiles,
		m.DeletedObjects,
		m.ReconcileRuns,
		m.ReconcileDuration,
		m.ReconcileObjectsPurged,
		m.ReconcileOrphanOwners,
		m.ReconcileLastRunTime,
	)

	return m
}

// Handler returns the HTTP handler exposing this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLogin records a login attempt outcome ("success", "invalid", "error").
func (m *Metrics) RecordLogin(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// RecordUpload records one stored file.
func (m *Metrics) RecordUpload(size int64) {
	m.UploadedFiles.Inc()
	m.UploadedBytes.Add(float64(size))
}

// RecordDeletes records deleted objects ("user", "cascade", "reconcile").
func (m *Metrics) RecordDeletes(reason string, count int) {
	m.DeletedObjects.WithLabelValues(reason).Add(float64(count))
}

// RecordReconcileRun records a finished reconciliation run.
func (m *Metrics) RecordReconcileRun(duration time.Duration, orphanOwners, purged int) {
	m.ReconcileRuns.Inc()
	m.ReconcileDuration.Observe(duration.Seconds())
	m.ReconcileOrphanOwners.Set(float64(orphanOwners))
	m.ReconcileObjectsPurged.Add(float64(purged))
	m.ReconcileLastRunTime.SetToCurrentTime()
}
