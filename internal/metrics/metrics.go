package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Layout run metrics
	LayoutRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "layout_runs_total",
			Help: "Total number of layout runs processed",
		},
		[]string{"status"}, // status: completed, failed, canceled
	)

	LayoutRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "layout_run_duration_seconds",
			Help:    "Duration of layout runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	LayoutIterationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_iteration_duration_seconds",
			Help:    "Duration of a single layout iteration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5},
		},
	)

	LayoutRunNodes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "layout_run_nodes",
			Help:    "Number of nodes per layout run",
			Buckets: prometheus.ExponentialBuckets(10, 10, 6),
		},
	)

	LayoutPositionsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_positions_written_total",
			Help: "Total number of node positions written back to the database",
		},
	)

	// Layout run status gauges
	LayoutRunsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_runs_pending",
			Help: "Number of pending layout runs",
		},
	)

	LayoutRunsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_runs_running",
			Help: "Number of layout runs currently running",
		},
	)

	LayoutRunsCompleted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_runs_completed",
			Help: "Number of completed layout runs",
		},
	)

	LayoutRunsFailed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "layout_runs_failed",
			Help: "Number of failed layout runs",
		},
	)

	// Versioning metrics
	LayoutVersionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_versions_created_total",
			Help: "Total number of layout position snapshots captured",
		},
	)

	LayoutDiffRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "layout_diff_rows_total",
			Help: "Total number of layout diff rows stored",
		},
	)

	// Database operation metrics
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	DBOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)

	// API cache metrics
	APICacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_hits_total",
			Help: "Total number of API cache hits",
		},
		[]string{"endpoint"},
	)

	APICacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_cache_misses_total",
			Help: "Total number of API cache misses",
		},
		[]string{"endpoint"},
	)

	APICacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_cache_size_bytes",
			Help: "Current size of the payload cache in bytes",
		},
	)

	APICacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_cache_items",
			Help: "Current number of items in the payload cache",
		},
	)

	APICacheEvictions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_cache_evictions",
			Help: "Cumulative number of payload cache evictions",
		},
	)

	// Graph metrics
	GraphsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graphs_total",
			Help: "Total number of graphs",
		},
	)

	GraphNodesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Total number of nodes across all graphs",
		},
	)

	GraphLinksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_links_total",
			Help: "Total number of links across all graphs",
		},
	)

	GraphNodesPositioned = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "graph_nodes_positioned",
			Help: "Number of nodes with computed positions",
		},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"}, // collector: graph, layout_runs, cache
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)
)
