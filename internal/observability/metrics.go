package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for lifecycle actions.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics holds the bot's Prometheus collectors.
type Metrics struct {
	registry          *prometheus.Registry
	lifecycleActions  *prometheus.CounterVec
	requestCount      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errorCount        *prometheus.CounterVec
	transcriptEntries prometheus.Histogram
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lifecycleActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "lifecycle_actions_total",
			Help:      "Ticket lifecycle actions, labeled by action and outcome",
		}, []string{"action", "outcome"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "http_requests_total",
			Help:      "Admin API requests",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ticketbot",
			Name:      "http_request_duration_seconds",
			Help:      "Admin API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ticketbot",
			Name:      "http_errors_total",
			Help:      "Admin API errors by domain error code",
		}, []string{"path", "method", "code"}),
		transcriptEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ticketbot",
			Name:      "transcript_messages",
			Help:      "Messages captured per closed ticket",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
	}
	m.registry.MustRegister(m.lifecycleActions, m.requestCount, m.requestDuration, m.errorCount, m.transcriptEntries)
	return m
}

// Registry exposes the collectors for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAction counts a lifecycle action outcome.
func (m *Metrics) RecordAction(action, outcome string) {
	if m == nil {
		return
	}
	m.lifecycleActions.WithLabelValues(action, outcome).Inc()
}

// RecordTranscript observes the size of a captured transcript.
func (m *Metrics) RecordTranscript(entries int) {
	if m == nil {
		return
	}
	m.transcriptEntries.Observe(float64(entries))
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}
