package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaweather_fetch_calls_total",
			Help: "Total upstream fetches by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jmaweather_fetch_latency_seconds",
			Help:    "Upstream fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RecordsAligned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaweather_records_aligned_total",
			Help: "Total day records produced by alignment",
		},
		[]string{"area"},
	)

	RecordsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaweather_records_stored_total",
			Help: "Total day records appended to the forecast table",
		},
		[]string{"area"},
	)

	SentinelRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaweather_sentinel_records_total",
			Help: "Total refreshes that degraded to an error record",
		},
		[]string{"tag"},
	)

	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jmaweather_store_errors_total",
			Help: "Total failed forecast appends",
		},
	)

	QualityFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jmaweather_quality_flags_total",
			Help: "Total quality flags raised on aligned records",
		},
		[]string{"flag"},
	)
)
