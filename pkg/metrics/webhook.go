package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts gateway webhook deliveries by event and outcome.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Gateway webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(outcomes)
	return &WebhookMetrics{outcomes: outcomes}
}

// Observe records one delivery.
func (w *WebhookMetrics) Observe(event, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
