package realtime

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"qrattend/internal/metrics"
)

var (
	errUnknownEvent  = errors.New("realtime: unknown event variant")
	errUnknownClient = errors.New("realtime: unknown client")
)

type entry struct {
	client *Client
	topics map[Topic]struct{}
}

// Registry tracks live clients and their subscription sets. Subscription sets
// are only ever touched through the owning client's id.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*entry

	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(log *zap.Logger, m *metrics.Metrics) *Registry {
	return &Registry{clients: make(map[string]*entry), log: log, metrics: m}
}

// Register adds c with an empty subscription set.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	if _, ok := r.clients[c.ID()]; ok {
		r.mu.Unlock()
		return
	}
	r.clients[c.ID()] = &entry{client: c, topics: make(map[Topic]struct{})}
	r.mu.Unlock()

	r.metrics.ConnectionOpened()
	r.log.Debug("client registered", zap.String("client", c.ID()))
}

// Deregister removes the client and closes it. Unknown ids are ignored, so
// both the read loop and a failed writer can call it.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	e, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	e.client.Close()
	r.metrics.ConnectionClosed()
	r.log.Debug("client deregistered", zap.String("client", id))
}

// Subscribe adds topic to the client's set.
func (r *Registry) Subscribe(id string, topic Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return errUnknownClient
	}
	e.topics[topic] = struct{}{}
	return nil
}

// Unsubscribe removes topic from the client's set.
func (r *Registry) Unsubscribe(id string, topic Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[id]
	if !ok {
		return errUnknownClient
	}
	delete(e.topics, topic)
	return nil
}

// SnapshotSubscribers returns the clients subscribed to topic at this instant.
// The slice is owned by the caller.
func (r *Registry) SnapshotSubscribers(topic Topic) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, e := range r.clients {
		if _, ok := e.topics[topic]; ok {
			out = append(out, e.client)
		}
	}
	return out
}

// Topics returns a copy of the client's subscription set.
func (r *Registry) Topics(id string) []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[id]
	if !ok {
		return nil
	}
	out := make([]Topic, 0, len(e.topics))
	for t := range e.topics {
		out = append(out, t)
	}
	return out
}

// Len reports the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// CloseAll deregisters every client. Used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Deregister(id)
	}
}
