// internal/utils/metrics.go
package utils

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "live_vision"

var (
	metricAPIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "api_requests_total",
		Help:      "HTTP requests served, by route, method and status.",
	}, []string{"route", "method", "status"})

	metricAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "api_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	metricClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "classifier_calls_total",
		Help:      "Emotion classifier calls, by result source tag.",
	}, []string{"source"})

	metricClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "classifier_call_duration_seconds",
		Help:      "Latency of emotion classifier calls.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	metricFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "frames_analyzed_total",
		Help:      "Frames analyzed, by counts source and dominant emotion.",
	}, []string{"counts_source", "emotion"})

	metricFacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "faces_detected_total",
		Help:      "Faces returned by the face locator.",
	})

	metricStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "streams_active",
		Help:      "Open websocket frame streams.",
	})
)

// APIMetrics records service-level metrics
type APIMetrics struct{}

// NewAPIMetrics creates a metrics recorder backed by the default registry
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{}
}

// RecordAPIRequest records one served HTTP request
func (am *APIMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	metricAPIRequests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	metricAPILatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordClassifierCall records one classifier call and its provenance
func (am *APIMetrics) RecordClassifierCall(source string, duration time.Duration) {
	metricClassifierCalls.WithLabelValues(source).Inc()
	metricClassifierLatency.Observe(duration.Seconds())
}

// RecordFrame records one aggregated frame
func (am *APIMetrics) RecordFrame(countsSource, emotion string, detectedFaces int) {
	metricFrames.WithLabelValues(countsSource, emotion).Inc()
	if detectedFaces > 0 {
		metricFacesDetected.Add(float64(detectedFaces))
	}
}

// StreamOpened increments the active stream gauge
func (am *APIMetrics) StreamOpened() {
	metricStreams.Inc()
}

// StreamClosed decrements the active stream gauge
func (am *APIMetrics) StreamClosed() {
	metricStreams.Dec()
}
