package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	transitionsTotal *prometheus.CounterVec
	valuationsTotal  *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appraisal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "appraisal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "appraisal",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appraisal",
			Name:      "report_transitions_total",
			Help:      "Report status transitions by target status and outcome.",
		},
		[]string{"service", "to", "outcome"},
	)
	valuationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "appraisal",
			Name:      "valuations_total",
			Help:      "Valuations computed by operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := newBreakerStateGauge()

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		transitionsTotal,
		valuationsTotal,
		breakerState,
	)

	return &HTTPServerMetrics{
		registry:         registry,
		service:          service,
		requestTotal:     requestTotal,
		requestDuration:  requestDuration,
		requestInFlight:  requestInFlight,
		transitionsTotal: transitionsTotal,
		valuationsTotal:  valuationsTotal,
		breakerState:     breakerState,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			m.service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses report and attachment ids so label cardinality
// stays bounded.
func normalizePath(path string) string {
	const reports = "/v1/reports/"
	if !strings.HasPrefix(path, reports) {
		if strings.HasPrefix(path, "/v1/building-standards/") {
			return "/v1/building-standards/{code}"
		}
		return path
	}
	parts := strings.Split(strings.TrimPrefix(path, reports), "/")
	if parts[0] == "" || parts[0] == "export.xlsx" {
		return path
	}
	parts[0] = "{id}"
	if len(parts) >= 3 && parts[1] == "attachments" {
		parts[2] = "{attachment_id}"
	}
	return reports + strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) ObserveTransition(to domain.ReportStatus, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.transitionsTotal.WithLabelValues(m.service, string(to), outcome).Inc()
}

func (m *HTTPServerMetrics) ObserveValuation(operation string) {
	m.valuationsTotal.WithLabelValues(m.service, operation).Inc()
}

// ObserveBreakerState is a resilience.StateObserver.
func (m *HTTPServerMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	setBreakerState(m.breakerState, operation, to)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
