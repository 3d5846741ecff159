package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP 与索引器指标

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ideamarket",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request processing duration",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route"})

	GracefulDegradations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "http",
		Name:      "graceful_degradations_total",
		Help:      "Writes answered with off-chain metadata only because the chain write failed",
	}, []string{"route"})

	// Indexer
	IndexerTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "ticks_total",
		Help:      "Total indexer poll ticks",
	})

	IndexerTickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "tick_errors_total",
		Help:      "Total indexer poll ticks that ended with an error",
	})

	IndexerRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "rate_limited_total",
		Help:      "Total RPC rate limit responses seen by the indexer",
	})

	IndexerBatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "batch_duration_seconds",
		Help:      "Duration of one block batch (fetch + handle)",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	IndexerEventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "events_processed_total",
		Help:      "Total decoded events written to the datastore",
	}, []string{"contract", "event"})

	IndexerEventsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "events_duplicate_total",
		Help:      "Total events skipped because they were already indexed",
	}, []string{"contract", "event"})

	IndexerEventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "events_rejected_total",
		Help:      "Total logs that failed to decode or to persist",
	}, []string{"contract", "reason"})

	IndexerCursorBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ideamarket",
		Subsystem: "indexer",
		Name:      "cursor_block",
		Help:      "Last block fully processed by the indexer",
	})

	ChainHeadBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ideamarket",
		Subsystem: "chain",
		Name:      "head_block",
		Help:      "Latest block number observed through the RPC fallback list",
	})
)
