package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Rotation("ok")
	m.Rotation("ok")
	m.CheckIn("accepted")
	m.Publish("qr")
	m.Delivery("qr", "dropped")
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	require.Equal(t, 2.0, testutil.ToFloat64(m.Rotations.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CheckIns.WithLabelValues("accepted")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Published.WithLabelValues("qr")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("qr", "dropped")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Connections))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Rotation("ok")
		m.CheckIn("rejected")
		m.Publish("qr")
		m.Delivery("qr", "sent")
		m.ConnectionOpened()
		m.ConnectionClosed()
	})
}
