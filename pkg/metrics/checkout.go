package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics covers payment initiation, outcomes, retry checks and refunds.
type CheckoutMetrics struct {
	initiations *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	retryChecks *prometheus.CounterVec
	failOpen    prometheus.Counter
	refunds     *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics. A nil registerer yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		initiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_initiations_total",
			Help: "Payment initiation requests by processor and result.",
		}, []string{"provider", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Resolved payment attempts by outcome.",
		}, []string{"outcome"}),
		retryChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retry_status_checks_total",
			Help: "Retry status lookups by result.",
		}, []string{"result"}),
		failOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retry_status_fail_open_total",
			Help: "Retry status lookups answered with a degraded fail-open grant.",
		}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "refund_transitions_total",
			Help: "Refund request transitions by resulting status.",
		}, []string{"status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_processor_latency_seconds",
			Help:    "Latency of payment processor calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
	}
	reg.MustRegister(m.initiations, m.outcomes, m.retryChecks, m.failOpen, m.refunds, m.latency)
	return m
}

func (m *CheckoutMetrics) IncInitiation(provider, result string) {
	if m == nil || m.initiations == nil {
		return
	}
	m.initiations.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) IncRetryCheck(result string) {
	if m == nil || m.retryChecks == nil {
		return
	}
	m.retryChecks.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CheckoutMetrics) IncFailOpen() {
	if m == nil || m.failOpen == nil {
		return
	}
	m.failOpen.Inc()
}

func (m *CheckoutMetrics) IncRefundTransition(status string) {
	if m == nil || m.refunds == nil {
		return
	}
	m.refunds.WithLabelValues(normalizeLabel(status)).Inc()
}

// ObserveProcessor records how long a processor call took.
func (m *CheckoutMetrics) ObserveProcessor(provider, operation string, d time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(d.Seconds())
}
