package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream service labels.
const (
	ServiceGemini     = "gemini"
	ServiceElevenLabs = "elevenlabs"
	ServiceImgBB      = "imgbb"
	ServiceObjects    = "objectstore"
	ServiceReference  = "reference_fetch"
)

// Degradation kinds.
const (
	DegradedImageHost      = "image_host"
	DegradedReferenceImage = "reference_image"
	DegradedActivityLog    = "activity_log"
	DegradedPartialWrite   = "partial_write"
	DegradedIndexFallback  = "index_fallback"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exteriorai_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	upstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exteriorai_upstream_calls_total",
			Help: "Upstream service calls by service and outcome",
		},
		[]string{"service", "outcome"},
	)
	upstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exteriorai_upstream_latency_seconds",
			Help:    "Upstream service call latency in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service"},
	)
	degradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exteriorai_degradations_total",
			Help: "Operations that completed in a degraded mode, by kind",
		},
		[]string{"kind"},
	)
)

// RecordUpstreamCall records one call to an upstream service.
func RecordUpstreamCall(service string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCalls.WithLabelValues(service, outcome).Inc()
	upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordDegraded counts a degraded completion.
func RecordDegraded(kind string) {
	degradations.WithLabelValues(kind).Inc()
}
