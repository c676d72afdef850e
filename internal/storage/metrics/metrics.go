// Package metrics holds the Prometheus collectors shared by the storage engine
// and the request dispatch layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OpSet     = "set"
	OpGet     = "get"
	OpRemove  = "remove"
	OpCompact = "compact"
	OpRecover = "recover"
)

var (
	EngineOperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kvs",
		Name:      "engine_operation_duration_seconds",
		Help:      "Latency of storage engine operations.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
	}, []string{"engine", "operation"})

	EngineStaleBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvs",
		Name:      "engine_stale_bytes",
		Help:      "Bytes held by superseded records since the last compaction.",
	})

	EngineSegments = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kvs",
		Name:      "engine_segments",
		Help:      "Number of segment files on disk.",
	})

	EngineCompactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvs",
		Name:      "engine_compactions_total",
		Help:      "Compaction passes by result.",
	}, []string{"result"})

	EngineReclaimedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvs",
		Name:      "engine_reclaimed_bytes_total",
		Help:      "Bytes of segment files deleted by compaction.",
	})

	EngineTruncatedTails = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kvs",
		Name:      "engine_truncated_tails_total",
		Help:      "Torn segment tails discarded during recovery.",
	})

	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kvs",
		Name:      "requests_total",
		Help:      "Client requests by operation and outcome.",
	}, []string{"operation", "outcome"})
)

func init() {
	prometheus.MustRegister(
		EngineOperationDuration,
		EngineStaleBytes,
		EngineSegments,
		EngineCompactions,
		EngineReclaimedBytes,
		EngineTruncatedTails,
		RequestsTotal,
	)
}

// ObserveEngineOp records the duration of one engine operation started at start.
func ObserveEngineOp(engine, op string, start time.Time) {
	EngineOperationDuration.WithLabelValues(engine, op).Observe(time.Since(start).Seconds())
}
