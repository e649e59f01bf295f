// Package metrics exposes operational counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/stockcount/internal/session"
)

const namespace = "stockcount"

// Metrics owns a private registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	finalized    *prometheus.CounterVec
	skippedRows  *prometheus.CounterVec
	persistFails *prometheus.CounterVec
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans by result.",
		}, []string{"result"}),
		finalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finalized_total",
			Help:      "Finalized counting sessions by mode.",
		}, []string{"mode"}),
		skippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rows_skipped_total",
			Help:      "Rows dropped while building catalogs, by file.",
		}, []string{"file"}),
		persistFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed session store operations.",
		}, []string{"store", "op"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scans,
		m.finalized,
		m.skippedRows,
		m.persistFails,
		m.requests,
		m.duration,
	)
	return m
}

// ScanResult counts one scan.
func (m *Metrics) ScanResult(result string) {
	m.scans.WithLabelValues(result).Inc()
}

// SessionFinalized counts one finalized session.
func (m *Metrics) SessionFinalized(mode string) {
	m.finalized.WithLabelValues(mode).Inc()
}

// RowsSkipped adds n dropped rows for file.
func (m *Metrics) RowsSkipped(file string, n int) {
	if n <= 0 {
		return
	}
	m.skippedRows.WithLabelValues(file).Add(float64(n))
}

// PersistenceFailure counts a failed store operation. It matches
// session.Options.OnFailure.
func (m *Metrics) PersistenceFailure(store session.Source, op string) {
	m.persistFails.WithLabelValues(string(store), op).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
