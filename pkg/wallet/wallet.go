// Package wallet defines the capability contracts for external wallet
// handles and the normalized descriptor types derived from them.
//
// External wallets are loosely-typed objects owned by a browser extension
// or injected provider. All shape assumptions about them live here: a
// Handle exposes named features, and typed capability interfaces with
// guards replace ad hoc property probing.
package wallet

import (
	"context"
	"strings"
)

// Standard feature names advertised by wallet handles.
const (
	FeatureConnect    = "standard:connect"
	FeatureDisconnect = "standard:disconnect"
	FeatureEvents     = "standard:events"
	FeatureSignTx     = "solana:signTransaction"
	FeatureSignMsg    = "solana:signMessage"
)

// RawAccount is an account as exposed by the wallet handle. The Raw field
// is opaque to the client and passed through to signing consumers.
type RawAccount struct {
	Address string
	Icon    string
	Raw     interface{}
}

// Handle is the live wallet object obtained from a discovery source.
//
// Name must be stable across discovery passes; it is the dedup key.
// Accounts returns the currently exposed account list, which may change
// over the life of a session.
type Handle interface {
	Name() string
	Icon() string
	Chains() []string
	Features() map[string]interface{}
	Accounts() []RawAccount
}

// ConnectFeature is the capability for establishing a session.
// Silent connects must not prompt the user; they are used only for
// background auto-reconnect probing.
type ConnectFeature interface {
	Connect(ctx context.Context, silent bool) ([]RawAccount, error)
}

// DisconnectFeature is the capability for tearing down a session.
type DisconnectFeature interface {
	Disconnect(ctx context.Context) error
}

// EventsFeature is the capability for native change notifications.
// The returned disposer unregisters the listener.
type EventsFeature interface {
	OnAccountsChanged(listener func(accounts []RawAccount)) (unsubscribe func())
}

// ConnectFeatureOf returns the connect capability of a handle, if present.
func ConnectFeatureOf(h Handle) (ConnectFeature, bool) {
	f, ok := h.Features()[FeatureConnect].(ConnectFeature)
	return f, ok
}

// DisconnectFeatureOf returns the disconnect capability of a handle, if present.
func DisconnectFeatureOf(h Handle) (DisconnectFeature, bool) {
	f, ok := h.Features()[FeatureDisconnect].(DisconnectFeature)
	return f, ok
}

// EventsFeatureOf returns the events capability of a handle, if present.
func EventsFeatureOf(h Handle) (EventsFeature, bool) {
	f, ok := h.Features()[FeatureEvents].(EventsFeature)
	return f, ok
}

// SupportsChainFamily reports whether any advertised chain identifier
// contains the given family substring (e.g. "solana").
func SupportsChainFamily(h Handle, family string) bool {
	for _, chain := range h.Chains() {
		if strings.Contains(chain, family) {
			return true
		}
	}
	return false
}
