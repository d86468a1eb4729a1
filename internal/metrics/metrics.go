// Package metrics registers the Prometheus collectors shared by the HTTP
// API and the ingestion worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts API requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunter_http_requests_total",
		Help: "API requests by route and status code",
	}, []string{"route", "code"})

	// HTTPDuration observes request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hunter_http_request_duration_seconds",
		Help:    "API request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// FeedCacheHits counts response-cache hits and misses.
	FeedCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunter_feed_cache_total",
		Help: "Feed response cache hits and misses",
	}, []string{"result"})

	// IngestEventsIn counts transfer events received per chain.
	IngestEventsIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunter_ingest_events_in_total",
		Help: "Transfer events received per chain",
	}, []string{"chain"})

	// IngestEventsOut counts transfer events persisted per chain.
	IngestEventsOut = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunter_ingest_events_out_total",
		Help: "Transfer events persisted per chain",
	}, []string{"chain"})

	// IngestLag observes event age at ingestion time per chain.
	IngestLag = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hunter_ingest_lag_ms",
		Help:    "Event age in milliseconds at ingestion time",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"chain"})

	// IngestFailovers counts provider failovers per chain.
	IngestFailovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hunter_ingest_failovers_total",
		Help: "Provider failovers per chain",
	}, []string{"chain"})
)
