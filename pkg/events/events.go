// Package events provides the lifecycle event bus: decoupled, typed
// notifications of discrete occurrences (not state snapshots) for
// observability consumers such as analytics and logging.
package events

import "time"

// Type identifies a lifecycle event. The taxonomy is exhaustive: every
// emission uses one of these values.
type Type string

const (
	// TypeWalletConnected fires after a session is established
	TypeWalletConnected Type = "wallet:connected"
	// TypeWalletDisconnected fires after a session is torn down
	TypeWalletDisconnected Type = "wallet:disconnected"
	// TypeWalletChanged fires when the selected wallet changes
	TypeWalletChanged Type = "wallet:changed"
	// TypeAccountChanged fires when the selected account changes
	TypeAccountChanged Type = "account:changed"
	// TypeClusterChanged fires when the active cluster actually changes
	TypeClusterChanged Type = "cluster:changed"
	// TypeWalletsDetected fires after a discovery pass
	TypeWalletsDetected Type = "wallets:detected"
	// TypeConnecting fires when a connect attempt starts
	TypeConnecting Type = "connecting"
	// TypeConnectionFailed fires when a connect attempt fails
	TypeConnectionFailed Type = "connection:failed"
	// TypeError wraps any failure with a context string
	TypeError Type = "error"
	// TypeTransactionTracked and TypeTransactionUpdated form an optional
	// instrumentation channel, independent of connection state
	TypeTransactionTracked Type = "transaction:tracked"
	TypeTransactionUpdated Type = "transaction:updated"
)

// Event is one lifecycle occurrence. Only the fields relevant to the
// event type are populated.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Wallet is the wallet name for wallet and connection events
	Wallet string `json:"wallet,omitempty"`
	// Account is the account address for account events
	Account string `json:"account,omitempty"`
	// Cluster and PreviousCluster carry ids for cluster:changed
	Cluster         string `json:"cluster,omitempty"`
	PreviousCluster string `json:"previous_cluster,omitempty"`
	// Count carries the detected wallet count for wallets:detected
	Count int `json:"count,omitempty"`
	// Signature identifies a tracked transaction
	Signature string `json:"signature,omitempty"`
	// Status carries a transaction status for transaction:updated
	Status string `json:"status,omitempty"`
	// Err and Context describe failures for error events
	Err     error  `json:"-"`
	Context string `json:"context,omitempty"`
}
