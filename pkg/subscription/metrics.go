package subscription

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	checks          *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	reactivations   *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petvoice",
			Subsystem: "subscription",
			Name:      "checks_total",
			Help:      "Subscription reconciliations by outcome.",
		}, []string{"outcome"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petvoice",
			Subsystem: "subscription",
			Name:      "cancellations_total",
			Help:      "Cancellation requests by type and outcome.",
		}, []string{"type", "outcome"}),
		reactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petvoice",
			Subsystem: "subscription",
			Name:      "reactivations_total",
			Help:      "Reactivation requests by outcome.",
		}, []string{"outcome"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "petvoice",
			Subsystem: "subscription",
			Name:      "webhook_events_total",
			Help:      "Billing webhook events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "petvoice",
			Subsystem: "billing",
			Name:      "provider_request_duration_seconds",
			Help:      "Billing provider call latency by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.checks, m.cancellations, m.reactivations, m.webhooks, m.providerLatency)
	return m
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) check(outcome string) {
	if m != nil {
		m.checks.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) cancellation(kind CancellationType, err error) {
	if m != nil {
		label := string(kind)
		if _, perr := ParseCancellationType(label); perr != nil {
			label = "invalid"
		}
		m.cancellations.WithLabelValues(label, outcomeOf(err)).Inc()
	}
}

func (m *Metrics) reactivation(err error) {
	if m != nil {
		m.reactivations.WithLabelValues(outcomeOf(err)).Inc()
	}
}

func (m *Metrics) webhook(kind EventKind, outcome string) {
	if m != nil {
		m.webhooks.WithLabelValues(string(kind), outcome).Inc()
	}
}

// ObserveProvider records the latency of one billing provider call.
func (m *Metrics) ObserveProvider(operation string, started time.Time, err error) {
	if m != nil {
		m.providerLatency.WithLabelValues(operation, outcomeOf(err)).Observe(time.Since(started).Seconds())
	}
}
