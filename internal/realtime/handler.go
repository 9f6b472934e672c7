package realtime

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// Handler upgrades HTTP requests to WebSocket connections and wires each one
// into the registry.
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	buffer   int
	log      *zap.Logger
}

// NewHandler creates a handler; buffer is the per-client outbound queue size.
func NewHandler(registry *Registry, buffer int, log *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		buffer:   buffer,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Serve is the gin handler for the WebSocket endpoint. It blocks for the
// lifetime of the connection.
func (h *Handler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.buffer)
	h.registry.Register(client)
	h.log.Info("client connected", zap.String("client", client.ID()), zap.String("remote", c.ClientIP()))

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

// readPump applies the client's subscription frames until the socket fails.
func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.registry.Deregister(client.ID())
		_ = conn.Close()
		h.log.Info("client disconnected", zap.String("client", client.ID()))
	}()

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read", zap.String("client", client.ID()), zap.Error(err))
			}
			return
		}
		h.apply(client.ID(), data)
	}
}

// writePump is the only writer on conn.
func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.registry.Deregister(client.ID())
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.registry.Deregister(client.ID())
				return
			}
		}
	}
}

type controlFrame struct {
	Subscribe   string `json:"subscribe"`
	Unsubscribe string `json:"unsubscribe"`
}

// apply interprets one inbound frame. Anything malformed is logged and dropped.
func (h *Handler) apply(id string, data []byte) {
	var f controlFrame
	if err := json.Unmarshal(data, &f); err != nil {
		h.log.Debug("invalid frame from client", zap.String("client", id), zap.ByteString("frame", data))
		return
	}

	switch {
	case f.Subscribe != "":
		topic, ok := ParseTopic(f.Subscribe)
		if !ok {
			h.log.Debug("subscribe to unknown topic", zap.String("client", id), zap.String("topic", f.Subscribe))
			return
		}
		if err := h.registry.Subscribe(id, topic); err == nil {
			h.log.Debug("client subscribed", zap.String("client", id), zap.String("topic", string(topic)), h.topics(id))
		}
	case f.Unsubscribe != "":
		topic, ok := ParseTopic(f.Unsubscribe)
		if !ok {
			return
		}
		if err := h.registry.Unsubscribe(id, topic); err == nil {
			h.log.Debug("client unsubscribed", zap.String("client", id), zap.String("topic", string(topic)), h.topics(id))
		}
	default:
		h.log.Debug("frame without subscribe or unsubscribe", zap.String("client", id))
	}
}

func (h *Handler) topics(id string) zap.Field {
	topics := h.registry.Topics(id)
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = string(t)
	}
	sort.Strings(names)
	return zap.Strings("subscriptions", names)
}
