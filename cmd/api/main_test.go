package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg, m := newMetrics()
	m.Rotation("ok")
	m.ConnectionOpened()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["qrattend_secret_rotations_total"])
	require.True(t, names["go_goroutines"])
}
