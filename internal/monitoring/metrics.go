package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// ExternalAPIMetrics contains all metrics for external API monitoring
type ExternalAPIMetrics struct {
	apiDuration         *prometheus.HistogramVec
	apiCalls            *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec
	timeouts            *prometheus.CounterVec
}

func NewExternalAPIMetrics() *ExternalAPIMetrics {
	return &ExternalAPIMetrics{
		apiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faucet_swap_external_api_duration_seconds",
				Help:    "Duration of external API calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api_name", "endpoint", "status"},
		),
		apiCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_swap_external_api_calls_total",
				Help: "Total number of external API calls",
			},
			[]string{"api_name", "status"},
		),
		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faucet_swap_circuit_breaker_state",
				Help: "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"api_name"},
		),
		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_swap_external_api_timeouts_total",
				Help: "Total number of external API timeouts",
			},
			[]string{"api_name", "timeout_type"},
		),
	}
}

func (m *ExternalAPIMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(
		m.apiDuration,
		m.apiCalls,
		m.circuitBreakerState,
		m.timeouts,
	)
}

func (m *ExternalAPIMetrics) RecordAPICall(apiName, endpoint, status string, duration float64) {
	m.apiDuration.WithLabelValues(apiName, endpoint, status).Observe(duration)
	m.apiCalls.WithLabelValues(apiName, status).Inc()
}

func (m *ExternalAPIMetrics) UpdateCircuitBreakerState(apiName string, state gobreaker.State) {
	m.circuitBreakerState.WithLabelValues(apiName).Set(float64(state))
}

func (m *ExternalAPIMetrics) RecordTimeout(apiName, timeoutType string) {
	m.timeouts.WithLabelValues(apiName, timeoutType).Inc()
}

// SwapMetrics tracks reconciliation outcomes and the request backlog.
type SwapMetrics struct {
	outcomes      *prometheus.CounterVec
	backlog       *prometheus.GaugeVec
	listenerBlock prometheus.Gauge
	payoutLatency prometheus.Histogram
}

func NewSwapMetrics() *SwapMetrics {
	return &SwapMetrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faucet_swap_deposit_outcomes_total",
				Help: "Deposit events handled by the reconciler, by outcome",
			},
			[]string{"outcome"},
		),
		backlog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "faucet_swap_requests",
				Help: "Swap requests by status",
			},
			[]string{"status"},
		),
		listenerBlock: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "faucet_swap_listener_block",
				Help: "Last block height fully handled by the deposit listener",
			},
		),
		payoutLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "faucet_swap_payout_duration_seconds",
				Help:    "Time spent inside the faucet withdrawal call",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
	}
}

func (m *SwapMetrics) MustRegister(registry prometheus.Registerer) {
	registry.MustRegister(m.outcomes, m.backlog, m.listenerBlock, m.payoutLatency)
}

func (m *SwapMetrics) RecordOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *SwapMetrics) SetBacklog(status string, count int64) {
	m.backlog.WithLabelValues(status).Set(float64(count))
}

func (m *SwapMetrics) SetListenerBlock(block uint64) {
	m.listenerBlock.Set(float64(block))
}

func (m *SwapMetrics) ObservePayout(seconds float64) {
	m.payoutLatency.Observe(seconds)
}
