package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records webhook and payout outcomes for operator dashboards.
type PaymentMetrics struct {
	webhookEvents  *prometheus.CounterVec
	payoutAttempts *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processed webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	payoutAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_attempts_total",
		Help: "Payout initiation and retry attempts by outcome.",
	}, []string{"kind", "outcome"})
	reg.MustRegister(webhookEvents, payoutAttempts)
	return &PaymentMetrics{
		webhookEvents:  webhookEvents,
		payoutAttempts: payoutAttempts,
	}
}

// ObserveWebhookEvent increments the webhook counter for the event type.
func (m *PaymentMetrics) ObserveWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObservePayoutAttempt increments the payout counter for the attempt kind.
func (m *PaymentMetrics) ObservePayoutAttempt(kind, outcome string) {
	if m == nil || m.payoutAttempts == nil {
		return
	}
	m.payoutAttempts.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, " ", "_")
}
