package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics tracks the outbox publisher.
type OutboxMetrics struct {
	published  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	deferred   *prometheus.CounterVec
	deadLetter *prometheus.CounterVec
	dlqDepth   *prometheus.GaugeVec
	batch      prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events published to pubsub.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Retryable outbox publish failures.",
		}, []string{"event_type"}),
		deferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_deferred_total",
			Help:      "Events held back because an earlier event of the same order failed in the batch.",
		}, []string{"event_type"}),
		deadLetter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dead_lettered_total",
			Help:      "Outbox events moved to the DLQ.",
		}, []string{"event_type", "reason"}),
		dlqDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outbox_dlq_depth",
			Help:      "Events currently parked in the DLQ.",
		}, []string{"reason"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_batch_duration_seconds",
			Help:      "Time to fetch, publish and mark one outbox batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
	reg.MustRegister(m.published, m.failed, m.deferred, m.deadLetter, m.dlqDepth, m.batch)
	return m
}

func (o *OutboxMetrics) IncPublished(eventType string) {
	if o == nil || o.published == nil {
		return
	}
	o.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncFailed(eventType string) {
	if o == nil || o.failed == nil {
		return
	}
	o.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncDeferred(eventType string) {
	if o == nil || o.deferred == nil {
		return
	}
	o.deferred.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (o *OutboxMetrics) IncDeadLettered(eventType, reason string) {
	if o == nil || o.deadLetter == nil {
		return
	}
	o.deadLetter.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}

// SetDLQDepth replaces the per-reason DLQ gauge values.
func (o *OutboxMetrics) SetDLQDepth(byReason map[string]int64) {
	if o == nil || o.dlqDepth == nil {
		return
	}
	o.dlqDepth.Reset()
	for reason, n := range byReason {
		o.dlqDepth.WithLabelValues(normalizeLabel(reason)).Set(float64(n))
	}
}

func (o *OutboxMetrics) ObserveBatch(d time.Duration) {
	if o == nil || o.batch == nil {
		return
	}
	o.batch.Observe(d.Seconds())
}
