package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

// WorkerMetrics covers the audit sink consumer.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	eventsTotal    *prometheus.CounterVec
	appendDuration *prometheus.HistogramVec
	eventsInFlight prometheus.Gauge
	deliveryLag    *prometheus.HistogramVec
	breakerState   *prometheus.GaugeVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appraisal",
			Subsystem: "worker",
			Name:      "audit_events_total",
			Help:      "Total consumed report events by type and status.",
		},
		[]string{"service", "event_type", "status"},
	)
	appendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appraisal",
			Subsystem: "worker",
			Name:      "audit_append_duration_seconds",
			Help:      "Audit sink append duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	eventsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "appraisal",
			Subsystem: "worker",
			Name:      "audit_events_in_flight",
			Help:      "Number of report events being appended.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	deliveryLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appraisal",
			Subsystem: "worker",
			Name:      "event_lag_seconds",
			Help:      "Delay between the report change and its audit append.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	breakerState := newBreakerStateGauge()

	registry.MustRegister(eventsTotal, appendDuration, eventsInFlight, deliveryLag, breakerState)

	return &WorkerMetrics{
		registry:       registry,
		service:        service,
		eventsTotal:    eventsTotal,
		appendDuration: appendDuration,
		eventsInFlight: eventsInFlight,
		deliveryLag:    deliveryLag,
		breakerState:   breakerState,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.eventsInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(eventType string, duration time.Duration, err error) {
	m.eventsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.eventsTotal.WithLabelValues(m.service, eventType, status).Inc()
	m.appendDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.deliveryLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	setBreakerState(m.breakerState, operation, to)
}
