// Package metrics holds the salon-service domain counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "salon"

type Salon struct {
	SlotQueries  *prometheus.CounterVec
	Reservations *prometheus.CounterVec
	Orders       *prometheus.CounterVec
	Outbox       *prometheus.CounterVec
	Maintenance  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Salon {
	f := promauto.With(reg)
	return &Salon{
		SlotQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Availability queries by endpoint.",
		}, []string{"endpoint"}),
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation create attempts and transitions by result.",
		}, []string{"result"}),
		Orders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders entering each status.",
		}, []string{"status"}),
		Outbox: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events published to Kafka by topic and result.",
		}, []string{"topic", "result"}),
		Maintenance: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_actions_total",
			Help:      "Rows changed by the maintenance worker.",
		}, []string{"job"}),
	}
}

// Discard returns counters registered nowhere, for tests and tools.
func Discard() *Salon {
	return New(prometheus.NewRegistry())
}

func (m *Salon) Reservation(result string) {
	if m != nil {
		m.Reservations.WithLabelValues(result).Inc()
	}
}

func (m *Salon) Order(status string) {
	if m != nil {
		m.Orders.WithLabelValues(status).Inc()
	}
}

func (m *Salon) SlotQuery(endpoint string) {
	if m != nil {
		m.SlotQueries.WithLabelValues(endpoint).Inc()
	}
}

func (m *Salon) Published(topic string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Outbox.WithLabelValues(topic, result).Inc()
}

func (m *Salon) Maintained(job string, n int) {
	if m != nil && n > 0 {
		m.Maintenance.WithLabelValues(job).Add(float64(n))
	}
}
