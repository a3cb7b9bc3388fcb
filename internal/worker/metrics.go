package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstream_worker_deliveries_consumed_total",
			Help: "Total broker deliveries consumed, by source",
		},
		[]string{"source"},
	)

	eventsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstream_worker_events_persisted_total",
			Help: "Total canonical events handed to the store, by source and type",
		},
		[]string{"source", "event_type"},
	)

	deliveriesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstream_worker_deliveries_dropped_total",
			Help: "Total deliveries acked without a persisted event, by reason",
		},
		[]string{"source", "reason"},
	)

	processDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventstream_worker_process_duration_seconds",
			Help:    "Duration of one delivery's parse and persist attempt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
