package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "faucet_swap"

	// unmatchedRoute labels requests that hit no route, keeping path cardinality bounded.
	unmatchedRoute = "unmatched"
)

// HTTPMetrics covers the API surface: per-route request series plus swap API operations.
type HTTPMetrics struct {
	requestDuration  *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	inFlightRequests *prometheus.GaugeVec

	apiOperations *prometheus.CounterVec
	apiDuration   *prometheus.HistogramVec
}

func NewHTTPMetrics() *HTTPMetrics {
	requestLabels := []string{"method", "path", "status"}
	operationLabels := []string{"operation", "category", "outcome"}

	return &HTTPMetrics{
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, requestLabels),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, requestLabels),
		inFlightRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}, []string{"method", "path"}),
		apiOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "api",
			Name:      "operations_total",
			Help:      "Swap API operations by outcome",
		}, operationLabels),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "api",
			Name:      "operation_duration_seconds",
			Help:      "Duration of swap API operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, operationLabels),
	}
}

func (m *HTTPMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.requestDuration,
		m.requestsTotal,
		m.inFlightRequests,
		m.apiOperations,
		m.apiDuration,
	)
}

// RecordAPIOperation counts one operation; a zero duration is counted but not observed.
func (m *HTTPMetrics) RecordAPIOperation(operation, category, outcome string, duration float64) {
	m.apiOperations.WithLabelValues(operation, category, outcome).Inc()
	if duration > 0 {
		m.apiDuration.WithLabelValues(operation, category, outcome).Observe(duration)
	}
}

// HTTPMetricsMiddleware labels requests by route template, never by raw URL.
// Scrapes of /metrics are not recorded.
func HTTPMetricsMiddleware(metrics *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "/metrics" {
			c.Next()
			return
		}
		if path == "" {
			path = unmatchedRoute
		}

		method := c.Request.Method
		inFlight := metrics.inFlightRequests.WithLabelValues(method, path)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.requestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		metrics.requestsTotal.WithLabelValues(method, path, status).Inc()
	}
}

// BusinessMetricsRecorder is the swap handler's view of the API operation metrics.
type BusinessMetricsRecorder struct {
	metrics *HTTPMetrics
}

func NewBusinessMetricsRecorder(metrics *HTTPMetrics) *BusinessMetricsRecorder {
	return &BusinessMetricsRecorder{
		metrics: metrics,
	}
}

// RecordSwapIntent records a swap intent registered over HTTP.
func (r *BusinessMetricsRecorder) RecordSwapIntent(targetToken, outcome string, duration float64) {
	r.metrics.RecordAPIOperation("swap_intent", targetToken, outcome, duration)
}

// RecordSwapLookup records a status poll for a swap request.
func (r *BusinessMetricsRecorder) RecordSwapLookup(outcome string, duration float64) {
	r.metrics.RecordAPIOperation("swap_lookup", "api", outcome, duration)
}

func (r *BusinessMetricsRecorder) RecordDatabaseOperation(operation, outcome string, duration float64) {
	r.metrics.RecordAPIOperation("database", operation, outcome, duration)
}
