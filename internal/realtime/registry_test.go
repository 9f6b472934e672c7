package realtime

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"qrattend/internal/metrics"
)

func TestParseTopic(t *testing.T) {
	for _, s := range []string{"qr", "attendance", "absence", "message"} {
		topic, ok := ParseTopic(s)
		require.True(t, ok, s)
		require.Equal(t, Topic(s), topic)
	}
	_, ok := ParseTopic("users")
	require.False(t, ok)
	_, ok = ParseTopic("")
	require.False(t, ok)
}

func TestRegistry_SubscriptionsArePerClient(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	a, b := NewClient(4), NewClient(4)
	r.Register(a)
	r.Register(b)

	require.NoError(t, r.Subscribe(a.ID(), TopicQR))
	require.NoError(t, r.Subscribe(b.ID(), TopicAttendance))

	require.Equal(t, []*Client{a}, r.SnapshotSubscribers(TopicQR))
	require.Equal(t, []*Client{b}, r.SnapshotSubscribers(TopicAttendance))
	require.Empty(t, r.SnapshotSubscribers(TopicMessage))

	require.NoError(t, r.Unsubscribe(a.ID(), TopicQR))
	require.Empty(t, r.SnapshotSubscribers(TopicQR))
	require.Equal(t, []Topic{TopicAttendance}, r.Topics(b.ID()))
}

func TestRegistry_UnknownClient(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	require.ErrorIs(t, r.Subscribe("nope", TopicQR), errUnknownClient)
	require.ErrorIs(t, r.Unsubscribe("nope", TopicQR), errUnknownClient)
	require.Nil(t, r.Topics("nope"))
}

func TestRegistry_DeregisterIsIdempotent(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := NewRegistry(zap.NewNop(), m)
	c := NewClient(1)
	r.Register(c)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Connections))

	r.Deregister(c.ID())
	r.Deregister(c.ID())

	require.Equal(t, 0, r.Len())
	require.Equal(t, 0.0, testutil.ToFloat64(m.Connections))
	_, open := <-c.Outbound()
	require.False(t, open)
	require.False(t, c.Enqueue([]byte("late")))
}

func TestRegistry_SnapshotIsDetached(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	c := NewClient(1)
	r.Register(c)
	require.NoError(t, r.Subscribe(c.ID(), TopicQR))

	snap := r.SnapshotSubscribers(TopicQR)
	r.Deregister(c.ID())

	require.Len(t, snap, 1)
	require.Empty(t, r.SnapshotSubscribers(TopicQR))
}

func TestRegistry_CloseAll(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	clients := []*Client{NewClient(1), NewClient(1), NewClient(1)}
	for _, c := range clients {
		r.Register(c)
	}

	r.CloseAll()

	require.Equal(t, 0, r.Len())
	for _, c := range clients {
		_, open := <-c.Outbound()
		require.False(t, open)
	}
}

func TestRegistry_ConcurrentMutation(t *testing.T) {
	r := NewRegistry(zap.NewNop(), nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := NewClient(1)
			r.Register(c)
			_ = r.Subscribe(c.ID(), TopicQR)
			_ = r.SnapshotSubscribers(TopicQR)
			_ = r.Unsubscribe(c.ID(), TopicQR)
			r.Deregister(c.ID())
		}()
	}
	wg.Wait()
	require.Equal(t, 0, r.Len())
}
