package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts publisher results per topic.
type OutboxMetrics struct {
	published *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Outbox rows handled by the publisher, by topic and result.",
	}, []string{"topic", "result"})
	reg.MustRegister(published)
	return &OutboxMetrics{published: published}
}

// Inc records one row with result published, failed or dead_lettered.
func (m *OutboxMetrics) Inc(topic, result string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(topic), normalizeLabel(result)).Inc()
}
