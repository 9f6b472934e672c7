package realtime

import (
	"go.uber.org/zap"

	"qrattend/internal/metrics"
)

// Publisher is what producers depend on to push events.
type Publisher interface {
	Publish(e Event)
}

// Hub fans an event out to every client subscribed to its topic. Delivery is
// best effort: a client whose buffer is full or that is already closed simply
// misses the frame.
type Hub struct {
	registry *Registry
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewHub creates a hub reading subscribers from registry. m may be nil.
func NewHub(registry *Registry, log *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{registry: registry, log: log, metrics: m}
}

// Publish encodes e once and enqueues it on each subscriber in the snapshot.
// It never blocks on a slow client.
func (h *Hub) Publish(e Event) {
	frame, err := Encode(e)
	if err != nil {
		h.log.Error("encode event", zap.Error(err))
		return
	}
	topic := e.Topic()
	h.metrics.Publish(string(topic))

	for _, c := range h.registry.SnapshotSubscribers(topic) {
		if c.Enqueue(frame) {
			h.metrics.Delivery(string(topic), "sent")
			continue
		}
		h.metrics.Delivery(string(topic), "dropped")
		h.log.Debug("frame dropped", zap.String("client", c.ID()), zap.String("topic", string(topic)))
	}
}
