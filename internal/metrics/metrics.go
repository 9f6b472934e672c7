package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors exported on /metrics. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	Rotations   *prometheus.CounterVec
	CheckIns    *prometheus.CounterVec
	Published   *prometheus.CounterVec
	Deliveries  *prometheus.CounterVec
	Connections prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "secret_rotations_total",
			Help:      "Credential rotations by result (ok, failed, coalesced).",
		}, []string{"result"}),
		CheckIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "checkins_total",
			Help:      "Check-in attempts by outcome.",
		}, []string{"outcome"}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "events_published_total",
			Help:      "Events handed to the broadcast hub by topic.",
		}, []string{"topic"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qrattend",
			Name:      "event_deliveries_total",
			Help:      "Per-connection deliveries by topic and result (sent, dropped).",
		}, []string{"topic", "result"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "qrattend",
			Name:      "ws_connections",
			Help:      "Currently registered WebSocket connections.",
		}),
	}
	reg.MustRegister(m.Rotations, m.CheckIns, m.Published, m.Deliveries, m.Connections)
	return m
}

func (m *Metrics) Rotation(result string) {
	if m == nil {
		return
	}
	m.Rotations.WithLabelValues(result).Inc()
}

func (m *Metrics) CheckIn(outcome string) {
	if m == nil {
		return
	}
	m.CheckIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Publish(topic string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(topic).Inc()
}

func (m *Metrics) Delivery(topic, result string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}
