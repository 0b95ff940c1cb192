// Package metrics provides performance tracking and observability for
// Solwire using Prometheus metrics. It offers collectors for connection
// lifecycle operations, state update behavior, event emission and cluster
// RPC traffic.
//
// # Basic Usage
//
//	// Record a connect outcome
//	metrics.ConnectsTotal.WithLabelValues("Phantom", "success").Inc()
//
//	// Track notification latency
//	timer := metrics.NewTimer("notify")
//	publish(snapshot)
//	metrics.NotifyLatency.Observe(float64(timer.Stop().Nanoseconds()))
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total connects)
// Gauge: Values that can go up or down (e.g., detected wallets)
// Histogram: Distribution of values (e.g., latency percentiles)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectsTotal tracks connection attempts by wallet and outcome.
	// Labels: wallet, status (success/failure/not_found)
	ConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solwire_connects_total",
			Help: "Total number of wallet connection attempts",
		},
		[]string{"wallet", "status"},
	)

	// DisconnectsTotal tracks disconnects by wallet.
	DisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solwire_disconnects_total",
			Help: "Total number of wallet disconnects",
		},
		[]string{"wallet"},
	)

	// StateUpdatesTotal tracks state store updates by mode.
	// Labels: mode (immediate/coalesced/noop)
	StateUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solwire_state_updates_total",
			Help: "Total number of state store updates",
		},
		[]string{"mode"},
	)

	// EventsEmittedTotal tracks lifecycle events by type.
	EventsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solwire_events_emitted_total",
			Help: "Total number of lifecycle events emitted",
		},
		[]string{"type"},
	)

	// WalletsDetected tracks the current number of discovered wallets.
	WalletsDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "solwire_wallets_detected",
			Help: "Number of wallets currently discovered",
		},
	)

	// NotifyLatency tracks the distribution of time between a state
	// change being applied and its notification reaching subscribers.
	// Buckets are tuned around the ~16ms debounce window.
	NotifyLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "solwire_notify_latency_nanoseconds",
			Help: "Latency between state change and subscriber notification in nanoseconds",
			Buckets: []float64{
				1e3,   // 1μs - immediate dispatch
				1e4,   // 10μs
				1e5,   // 100μs
				1e6,   // 1ms
				4e6,   // 4ms
				1.6e7, // 16ms - debounce window
				3.2e7, // 32ms
				1e8,   // 100ms
			},
		},
	)

	// RPCRequestsTotal tracks cluster RPC calls.
	// Labels: method, status (success/failure)
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solwire_rpc_requests_total",
			Help: "Total number of cluster RPC requests",
		},
		[]string{"method", "status"},
	)

	// ReconnectsTotal tracks auto-reconnect attempts by path and outcome.
	// Labels: path (instant/discovery), status (success/failure/skipped)
	ReconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solwire_reconnects_total",
			Help: "Total number of auto-reconnect attempts",
		},
		[]string{"path", "status"},
	)
)

// Timer provides a simple timing mechanism for measuring operation
// durations. It captures the start time on creation and calculates
// elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
