// Package config provides the unified configuration system for Solwire.
// It defines a single Config structure covering cluster selection,
// persistence, notification scheduling, reconnect behavior and
// observability, with production-ready defaults.
//
// Example usage:
//
//	cfg := config.NewDefaultConfig()
//	cfg.Reconnect.Enabled = true
//	cfg.Storage.Path = "/var/lib/solwire/session.json"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"time"

	"github.com/solwire/solwire/pkg/cluster"
)

// Config is the single configuration structure for the connector client.
type Config struct {
	// Clusters is the fixed set of selectable networks. Set once at
	// construction; the client never mutates it at runtime.
	Clusters []cluster.Cluster `yaml:"clusters" json:"clusters"`

	// DefaultCluster is the cluster id used when no persisted selection
	// exists
	DefaultCluster string `yaml:"default_cluster" json:"default_cluster"`

	// Storage configures session persistence
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Notify configures subscriber notification scheduling
	Notify NotifyConfig `yaml:"notify" json:"notify"`

	// Reconnect configures silent auto-reconnect on startup
	Reconnect ReconnectConfig `yaml:"reconnect" json:"reconnect"`

	// Polling configures the account-change polling fallback
	Polling PollingConfig `yaml:"polling" json:"polling"`

	// Observability settings for logging and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// StorageConfig configures the persistence adapter.
type StorageConfig struct {
	// Path is the backing file for the key-value store. Empty selects the
	// in-memory store (nothing survives the process).
	Path string `yaml:"path" json:"path"`
	// KeyPrefix namespaces the persisted keys
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// NotifyConfig configures state change notification scheduling.
type NotifyConfig struct {
	// Debounce is the coalescing window for non-immediate updates
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// ReconnectConfig configures startup auto-reconnect.
type ReconnectConfig struct {
	// Enabled turns on silent reconnect to the persisted wallet
	Enabled bool `yaml:"enabled" json:"enabled"`
	// RetryDelay is the wait before the single discovery retry
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// PollingConfig configures the account-change polling fallback used when a
// wallet does not expose a native change-event feature.
type PollingConfig struct {
	// Interval between account list polls
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates span emission around lifecycle operations
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// NewDefaultConfig creates a Config with sensible defaults: the canonical
// public clusters, mainnet as the default selection, in-memory persistence,
// a 16ms debounce window and a 3s account polling interval.
func NewDefaultConfig() *Config {
	return &Config{
		Clusters:       cluster.Defaults(),
		DefaultCluster: cluster.MainnetID,
		Storage: StorageConfig{
			Path:      "",
			KeyPrefix: "solwire",
		},
		Notify: NotifyConfig{
			Debounce: 16 * time.Millisecond,
		},
		Reconnect: ReconnectConfig{
			Enabled:    true,
			RetryDelay: 500 * time.Millisecond,
		},
		Polling: PollingConfig{
			Interval: 3 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			EnableTracing:     false,
			LogLevel:          "info",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness. It checks required
// fields and ensures values are within acceptable ranges. Call this after
// loading configuration to catch errors early.
func (c *Config) Validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("at least one cluster is required")
	}
	if c.DefaultCluster == "" {
		return fmt.Errorf("default_cluster is required")
	}
	seen := make(map[string]bool, len(c.Clusters))
	defaultFound := false
	for _, cl := range c.Clusters {
		if cl.ID == "" {
			return fmt.Errorf("cluster id is required")
		}
		if cl.Endpoint == "" {
			return fmt.Errorf("cluster %s: endpoint is required", cl.ID)
		}
		if seen[cl.ID] {
			return fmt.Errorf("duplicate cluster id %s", cl.ID)
		}
		seen[cl.ID] = true
		if cl.ID == c.DefaultCluster {
			defaultFound = true
		}
	}
	if !defaultFound {
		return fmt.Errorf("default_cluster %s is not in the cluster set", c.DefaultCluster)
	}
	if c.Notify.Debounce < 0 {
		return fmt.Errorf("notify debounce cannot be negative")
	}
	if c.Polling.Interval <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}
	if c.Reconnect.RetryDelay < 0 {
		return fmt.Errorf("reconnect retry_delay cannot be negative")
	}
	return nil
}

// ClusterSet builds the immutable cluster set from the configuration.
func (c *Config) ClusterSet() (*cluster.Set, error) {
	return cluster.NewSet(c.Clusters)
}
