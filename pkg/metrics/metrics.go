// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        prometheus.Histogram
	SuggestQueriesTotal  prometheus.Counter
	RowsIngestedTotal    prometheus.Counter
	RowsRejectedTotal    prometheus.Counter
	IngestionRunsTotal   *prometheus.CounterVec
	IngestionDuration    prometheus.Histogram
	IndexRebuildsTotal   prometheus.Counter
	ActiveProducts       prometheus.Gauge
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
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		SuggestQueriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "suggest_queries_total",
				Help: "Total suggestion queries served.",
			},
		),
		RowsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_rows_ingested_total",
				Help: "Total catalog rows accepted by the transform step.",
			},
		),
		RowsRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_rows_rejected_total",
				Help: "Total catalog rows rejected during ingestion.",
			},
		),
		IngestionRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_runs_total",
				Help: "Total ingestion pipeline runs by status.",
			},
			[]string{"status"},
		),
		IngestionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestion_duration_seconds",
				Help:    "Full ingestion pipeline run duration in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		IndexRebuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_rebuilds_total",
				Help: "Total index rebuilds triggered by staleness resolution or reindex requests.",
			},
		),
		ActiveProducts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_products",
				Help: "Number of products in the currently served collection.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SuggestQueriesTotal,
		m.RowsIngestedTotal,
		m.RowsRejectedTotal,
		m.IngestionRunsTotal,
		m.IngestionDuration,
		m.IndexRebuildsTotal,
		m.ActiveProducts,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
