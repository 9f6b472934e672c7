package realtime

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newWSServer(t *testing.T) (*Registry, *Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := NewRegistry(zap.NewNop(), nil)
	hub := NewHub(reg, zap.NewNop(), nil)
	r := gin.New()
	r.GET("/ws", NewHandler(reg, 8, zap.NewNop()).Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		reg.CloseAll()
		srv.Close()
	})
	return reg, hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestHandler_SubscribeAndReceive(t *testing.T) {
	reg, hub, url := newWSServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"subscribe": "qr"}))
	waitFor(t, func() bool { return len(reg.SnapshotSubscribers(TopicQR)) == 1 })

	hub.Publish(AttendanceEvent{ID: 1, Status: "present"})
	hub.Publish(QREvent{QRCode: "img", Content: "secret-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "qr", got["type"])
	require.Equal(t, "secret-1", got["content"])
}

func TestHandler_MalformedFramesKeepConnectionOpen(t *testing.T) {
	reg, hub, url := newWSServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"subscribe":"nonsense"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"world"}`)))
	require.NoError(t, conn.WriteJSON(map[string]string{"subscribe": "message"}))

	waitFor(t, func() bool { return len(reg.SnapshotSubscribers(TopicMessage)) == 1 })
	require.Equal(t, 1, reg.Len())

	hub.Publish(MessageEvent{ID: 9, Subject: "still here"})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "still here", got["subject"])
}

func TestHandler_UnsubscribeStopsDelivery(t *testing.T) {
	reg, _, url := newWSServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]string{"subscribe": "absence"}))
	waitFor(t, func() bool { return len(reg.SnapshotSubscribers(TopicAbsence)) == 1 })

	require.NoError(t, conn.WriteJSON(map[string]string{"unsubscribe": "absence"}))
	waitFor(t, func() bool { return len(reg.SnapshotSubscribers(TopicAbsence)) == 0 })
	require.Equal(t, 1, reg.Len())
}

func TestHandler_DisconnectDeregisters(t *testing.T) {
	reg, _, url := newWSServer(t)
	conn := dial(t, url)
	waitFor(t, func() bool { return reg.Len() == 1 })

	require.NoError(t, conn.Close())
	waitFor(t, func() bool { return reg.Len() == 0 })
}

func TestHandler_CloseAllClosesSockets(t *testing.T) {
	reg, _, url := newWSServer(t)
	conn := dial(t, url)
	waitFor(t, func() bool { return reg.Len() == 1 })

	reg.CloseAll()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestApply_IgnoresUnknownClient(t *testing.T) {
	reg := NewRegistry(zap.NewNop(), nil)
	h := NewHandler(reg, 1, zap.NewNop())
	require.NotPanics(t, func() {
		h.apply("missing", []byte(`{"subscribe":"qr"}`))
		h.apply("missing", []byte(`{"unsubscribe":"qr"}`))
	})
}

func TestApply_LogsSubscriptionSet(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	reg := NewRegistry(zap.NewNop(), nil)
	h := NewHandler(reg, 1, zap.New(core))
	client := NewClient(1)
	reg.Register(client)

	h.apply(client.ID(), []byte(`{"subscribe":"qr"}`))
	h.apply(client.ID(), []byte(`{"subscribe":"attendance"}`))
	h.apply(client.ID(), []byte(`{"unsubscribe":"qr"}`))

	entries := logs.FilterField(zap.String("client", client.ID())).All()
	require.Len(t, entries, 3)
	require.Equal(t, []any{"attendance", "qr"}, entries[1].ContextMap()["subscriptions"])
	require.Equal(t, "client unsubscribed", entries[2].Message)
	require.Equal(t, []any{"attendance"}, entries[2].ContextMap()["subscriptions"])
}
