package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Client is one live connection as seen by the registry and hub. Frames are
// queued on a bounded buffer and drained by the connection's write pump.
type Client struct {
	id   string
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// NewClient returns a client with a fresh id and an outbound buffer of the given size.
func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{id: uuid.NewString(), send: make(chan []byte, buffer)}
}

func (c *Client) ID() string { return c.id }

// Outbound is drained by the writer. It is closed when the client closes.
func (c *Client) Outbound() <-chan []byte { return c.send }

// Enqueue queues a frame without blocking. It reports false when the buffer
// is full or the client is already closed.
func (c *Client) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops further enqueues and closes the outbound channel. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
