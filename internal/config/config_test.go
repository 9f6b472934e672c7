package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8081", cfg.HTTPPort)
	require.Equal(t, 5*time.Second, cfg.RotationInterval)
	require.Equal(t, 32, cfg.SecretBytes)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.False(t, cfg.Production())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("ROTATION_INTERVAL", "2500ms")
	t.Setenv("SEED_USERS", "5:alice,6:bob")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 2500*time.Millisecond, cfg.RotationInterval)
	require.True(t, cfg.Production())

	seed, err := cfg.Seed()
	require.NoError(t, err)
	require.Equal(t, map[int64]string{5: "alice", 6: "bob"}, seed)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "mongo")
		_, err := Load()
		require.ErrorContains(t, err, "STORE_BACKEND")
	})

	t.Run("non positive interval", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("ROTATION_INTERVAL", "0s")
		_, err := Load()
		require.ErrorContains(t, err, "ROTATION_INTERVAL")
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("SECRET_BYTES", "4")
		_, err := Load()
		require.ErrorContains(t, err, "SECRET_BYTES")
	})

	t.Run("bad seed id", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("SEED_USERS", "x:alice")
		_, err := Load()
		require.ErrorContains(t, err, "SEED_USERS")
	})
}
