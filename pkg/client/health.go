package client

import (
	"time"

	"github.com/solwire/solwire/pkg/state"
)

// HealthStatus is the diagnostic summary of the client. Infrastructure
// degradation (storage, discovery) never fails the public operations; it
// is visible only here and in debug logging.
type HealthStatus struct {
	Initialized       bool      `json:"initialized"`
	RegistryAvailable bool      `json:"registry_available"`
	StorageAvailable  bool      `json:"storage_available"`
	WalletsDetected   int       `json:"wallets_detected"`
	Errors            []string  `json:"errors"`
	Timestamp         time.Time `json:"timestamp"`
}

// Health returns the current diagnostic summary, including any state
// consistency violations.
func (c *Client) Health() HealthStatus {
	c.mu.Lock()
	initialized := c.initialized && !c.closed
	c.mu.Unlock()

	status := HealthStatus{
		Initialized:       initialized,
		RegistryAvailable: c.registry.Available(),
		StorageAvailable:  !c.walletStore.Degraded() && !c.clusterStore.Degraded(),
		WalletsDetected:   c.registry.Count(),
		Errors:            []string{},
		Timestamp:         time.Now(),
	}

	for _, err := range c.store.Snapshot().CheckConsistency() {
		status.Errors = append(status.Errors, err.Error())
	}
	if err := c.walletStore.LastError(); err != nil {
		status.Errors = append(status.Errors, "wallet store: "+err.Error())
	}
	if err := c.clusterStore.LastError(); err != nil {
		status.Errors = append(status.Errors, "cluster store: "+err.Error())
	}

	return status
}

// DebugMetrics exposes the state store's update and notification
// counters plus the event bus emission count.
type DebugMetrics struct {
	State         state.Metrics `json:"state"`
	EventsEmitted uint64        `json:"events_emitted"`
}

// DebugMetrics returns update counters and notification timing for
// debugging.
func (c *Client) DebugMetrics() DebugMetrics {
	return DebugMetrics{
		State:         c.store.Metrics(),
		EventsEmitted: c.bus.Emitted(),
	}
}
