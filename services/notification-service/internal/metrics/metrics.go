// Package metrics holds the notification-service counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notify"

type Notify struct {
	Events  *prometheus.CounterVec
	Emails  *prometheus.CounterVec
	Retries prometheus.Counter
}

func New(reg prometheus.Registerer) *Notify {
	f := promauto.With(reg)
	return &Notify{
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Kafka events consumed by topic and result.",
		}, []string{"topic", "result"}),
		Emails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_total",
			Help:      "Emails by final delivery status.",
		}, []string{"status"}),
		Retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_retries_total",
			Help:      "Failed email attempts that were retried.",
		}),
	}
}

func (m *Notify) Event(topic, result string) {
	if m != nil {
		m.Events.WithLabelValues(topic, result).Inc()
	}
}

func (m *Notify) Email(status string) {
	if m != nil {
		m.Emails.WithLabelValues(status).Inc()
	}
}

func (m *Notify) Retry() {
	if m != nil {
		m.Retries.Inc()
	}
}
