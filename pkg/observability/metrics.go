// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the chat relay.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM streaming latencies,
// ranging from 100ms to 300s (the default upstream timeout).
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaychat_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaychat_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks the number of chat streams currently open.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relaychat_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// UpstreamRequestsTotal counts upstream calls by how they ended:
	// done, error, cancelled, or failed (never opened).
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaychat_upstream_requests_total",
			Help: "Upstream requests",
		},
		[]string{"provider", "outcome"},
	)

	// UpstreamLatency records the duration of upstream streams in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaychat_upstream_latency_seconds",
			Help:    "Upstream stream duration",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// UpstreamFirstDelta records the time from request start to the first
	// relayed text delta.
	UpstreamFirstDelta = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relaychat_upstream_first_delta_seconds",
			Help:    "Time to first delta",
			Buckets: LLMBuckets,
		},
		[]string{"provider"},
	)

	// StreamEventsTotal counts NDJSON events written to clients by type.
	StreamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relaychat_stream_events_total",
			Help: "Stream events written",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		UpstreamRequestsTotal,
		UpstreamLatency,
		UpstreamFirstDelta,
		StreamEventsTotal,
	)
}
