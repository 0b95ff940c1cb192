package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/pkg/cluster"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, cluster.MainnetID, cfg.DefaultCluster)
	assert.Equal(t, 16*time.Millisecond, cfg.Notify.Debounce)
	assert.Equal(t, 3*time.Second, cfg.Polling.Interval)
	assert.True(t, cfg.Reconnect.Enabled)
	assert.Equal(t, "solwire", cfg.Storage.KeyPrefix)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "no clusters",
			mutate: func(c *Config) { c.Clusters = nil },
			errMsg: "at least one cluster",
		},
		{
			name:   "empty default cluster",
			mutate: func(c *Config) { c.DefaultCluster = "" },
			errMsg: "default_cluster is required",
		},
		{
			name:   "default cluster not in set",
			mutate: func(c *Config) { c.DefaultCluster = "solana:unknown" },
			errMsg: "not in the cluster set",
		},
		{
			name: "cluster without id",
			mutate: func(c *Config) {
				c.Clusters = append(c.Clusters, cluster.Cluster{Endpoint: "http://localhost:8899"})
			},
			errMsg: "cluster id is required",
		},
		{
			name: "cluster without endpoint",
			mutate: func(c *Config) {
				c.Clusters = append(c.Clusters, cluster.Cluster{ID: cluster.LocalnetID})
			},
			errMsg: "endpoint is required",
		},
		{
			name: "duplicate cluster id",
			mutate: func(c *Config) {
				c.Clusters = append(c.Clusters, c.Clusters[0])
			},
			errMsg: "duplicate cluster id",
		},
		{
			name:   "negative debounce",
			mutate: func(c *Config) { c.Notify.Debounce = -time.Millisecond },
			errMsg: "debounce cannot be negative",
		},
		{
			name:   "zero polling interval",
			mutate: func(c *Config) { c.Polling.Interval = 0 },
			errMsg: "polling interval must be positive",
		},
		{
			name:   "negative retry delay",
			mutate: func(c *Config) { c.Reconnect.RetryDelay = -time.Second },
			errMsg: "retry_delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("SOLWIRE_TEST_ENDPOINT", "http://localhost:8899")

	content := `
clusters:
  - id: "solana:localnet"
    label: "Localnet"
    endpoint: "${SOLWIRE_TEST_ENDPOINT}"
default_cluster: "solana:localnet"
notify:
  debounce: 32000000
reconnect:
  enabled: false
`
	path := filepath.Join(t.TempDir(), "solwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Clusters, 1)
	assert.Equal(t, "http://localhost:8899", cfg.Clusters[0].Endpoint)
	assert.Equal(t, "solana:localnet", cfg.DefaultCluster)
	assert.Equal(t, 32*time.Millisecond, cfg.Notify.Debounce)
	assert.False(t, cfg.Reconnect.Enabled)

	// Unset keys keep their defaults.
	assert.Equal(t, 3*time.Second, cfg.Polling.Interval)
	assert.Equal(t, "solwire", cfg.Storage.KeyPrefix)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	content := `
default_cluster: "solana:nowhere"
`
	path := filepath.Join(t.TempDir(), "solwire.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Storage.Path = "/var/lib/solwire/session.json"
	cfg.Observability.LogLevel = "debug"

	path := filepath.Join(t.TempDir(), "solwire.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Path, loaded.Storage.Path)
	assert.Equal(t, "debug", loaded.Observability.LogLevel)
	assert.Equal(t, cfg.DefaultCluster, loaded.DefaultCluster)
}
