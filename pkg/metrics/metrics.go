package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Define global variables for metrics.
// We use 'promauto' which automatically registers metrics without complex initialization.

var (
	// 1. HTTP Requests Total (Counter)
	// Counts how many requests arrive, labeled by method, path, and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalkg_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// 2. HTTP Request Duration (Histogram)
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "causalkg_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "path"},
	)

	// 3. Queries (Counter)
	// op is path, targets, sources or correlation; outcome is found,
	// not_found, exhausted, invalid or error.
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalkg_queries_total",
			Help: "Engine queries by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	// 4. Correlations served, split by explainability.
	CorrelationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalkg_correlations_served_total",
			Help: "Correlation records returned by the cursor",
		},
		[]string{"explainable"},
	)

	// 5. Cursor resets; scope is "source" or "all".
	CursorResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalkg_cursor_resets_total",
			Help: "Correlation cursor resets",
		},
		[]string{"scope"},
	)

	// 6. Sources with a live correlation cursor (Gauge).
	CursorSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "causalkg_cursor_sources",
			Help: "Sources whose correlation cursor is past the start of the table",
		},
	)

	// 7. Knowledge store failures seen by the engine.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "causalkg_store_errors_total",
			Help: "Knowledge store failures by operation",
		},
		[]string{"op"},
	)

	// 8. Graph size (Gauge), refreshed after loading datasets.
	GraphSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "causalkg_graph_size",
			Help: "Number of stored edges and correlation records",
		},
		[]string{"kind"},
	)

	// 9. Append-only log size in bytes (Gauge), durable in-memory store only.
	// It falls back to zero after every snapshot.
	LogBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "causalkg_log_bytes",
			Help: "Size of the graph store append-only log",
		},
	)
)
