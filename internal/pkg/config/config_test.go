package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.ServerPort)
	assert.Equal(t, "6060", cfg.PprofPort)
	assert.Equal(t, "9092", cfg.MetricsPort)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.Recommender.Timeout)
	assert.False(t, cfg.Production)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("SERVER_PORT", "8200")
	t.Setenv("PPROF_PORT", "6111")
	t.Setenv("METRICS_PORT", "9111")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RECOMMENDER_URL", "http://recommender:9105/refresh")
	t.Setenv("PRODUCTION", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8200", cfg.ServerPort)
	assert.Equal(t, "6111", cfg.PprofPort)
	assert.Equal(t, "9111", cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://recommender:9105/refresh", cfg.Recommender.URL)
	assert.True(t, cfg.Production)
}

func TestLoadRequiresPassword(t *testing.T) {
	t.Setenv("POSTGRES_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}
