package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstream_gateway_webhooks_received_total",
			Help: "Total webhook requests received, by classified source",
		},
		[]string{"source"},
	)

	webhooksRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstream_gateway_webhooks_rejected_total",
			Help: "Total webhook requests rejected, by reason",
		},
		[]string{"source", "reason"},
	)

	envelopesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventstream_gateway_envelopes_published_total",
			Help: "Total envelopes published to the event bus",
		},
		[]string{"source"},
	)

	publishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventstream_gateway_publish_errors_total",
			Help: "Total publish failures swallowed on the request path",
		},
	)

	publishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventstream_gateway_publish_duration_seconds",
			Help:    "Duration of broker publish attempts in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
