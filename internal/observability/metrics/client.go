package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics observes the outgoing side of the backend client: transport
// calls, chat streams, job polling and search executions. All methods are
// safe on a nil receiver so wiring metrics stays optional.
type ClientMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	streamEventsTotal   *prometheus.CounterVec
	streamSessionsTotal *prometheus.CounterVec
	pollAttempts        *prometheus.HistogramVec
	searchOutcomesTotal *prometheus.CounterVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total backend requests by operation and status.",
		},
		[]string{"service", "operation", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coderag",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Backend request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "operation"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "coderag",
			Subsystem: "client",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight backend requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	streamEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "chat",
			Name:      "stream_events_total",
			Help:      "Total decoded chat stream events by type.",
		},
		[]string{"service", "type"},
	)
	streamSessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "chat",
			Name:      "stream_sessions_total",
			Help:      "Total chat sessions by terminal state.",
		},
		[]string{"service", "state"},
	)
	pollAttempts := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coderag",
			Subsystem: "jobs",
			Name:      "poll_attempts",
			Help:      "Distribution of status polls per tracked job.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
		},
		[]string{"service", "outcome"},
	)
	searchOutcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coderag",
			Subsystem: "search",
			Name:      "executions_total",
			Help:      "Total search executions by outcome, stale discards included.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		streamEventsTotal,
		streamSessionsTotal,
		pollAttempts,
		searchOutcomesTotal,
	)

	return &ClientMetrics{
		service:             service,
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		streamEventsTotal:   streamEventsTotal,
		streamSessionsTotal: streamSessionsTotal,
		pollAttempts:        pollAttempts,
		searchOutcomesTotal: searchOutcomesTotal,
	}
}

func (m *ClientMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest observes one finished transport call. A statusCode of zero
// means the request never produced a response.
func (m *ClientMetrics) RecordRequest(operation string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.requestTotal.WithLabelValues(m.service, operation, status).Inc()
	m.requestDuration.WithLabelValues(m.service, operation).Observe(duration.Seconds())
}

func (m *ClientMetrics) RequestStarted() {
	if m == nil {
		return
	}
	m.requestInFlight.Inc()
}

func (m *ClientMetrics) RequestFinished() {
	if m == nil {
		return
	}
	m.requestInFlight.Dec()
}

func (m *ClientMetrics) RecordStreamEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.streamEventsTotal.WithLabelValues(m.service, eventType).Inc()
}

func (m *ClientMetrics) RecordStreamOutcome(state string) {
	if m == nil {
		return
	}
	if state == "" {
		state = "unknown"
	}
	m.streamSessionsTotal.WithLabelValues(m.service, state).Inc()
}

func (m *ClientMetrics) ObservePollAttempts(outcome string, attempts int) {
	if m == nil || attempts <= 0 {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.pollAttempts.WithLabelValues(m.service, outcome).Observe(float64(attempts))
}

func (m *ClientMetrics) RecordSearchOutcome(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.searchOutcomesTotal.WithLabelValues(m.service, outcome).Inc()
}
