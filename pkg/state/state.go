// Package state holds the canonical connector state aggregate and fans
// out change notifications.
//
// The aggregate is owned exclusively by the Store: all mutation goes
// through Apply, which structurally diffs each requested key against the
// current value and skips keys that did not change. Updates where no key
// changed are counted no-ops and never published. Applied updates replace
// the whole top-level state object so consumers can use cheap
// reference-equality checks on snapshots.
//
// Notification discipline: standard updates are coalesced on a short
// debounce window (one notification carrying the latest state); updates
// flagged immediate bypass coalescing and notify synchronously. Consumers
// must react to connection transitions without perceptible delay, so the
// lifecycle layer flags those immediate.
package state

import (
	"strings"

	"github.com/solwire/solwire/pkg/cluster"
	"github.com/solwire/solwire/pkg/errors"
	"github.com/solwire/solwire/pkg/wallet"
)

// ConnectorState is the single mutable aggregate. Snapshots returned by
// the store must be treated as immutable by callers.
type ConnectorState struct {
	// Wallets in discovery order, deduplicated by name
	Wallets []wallet.Descriptor
	// SelectedWallet is the active wallet descriptor, or nil
	SelectedWallet *wallet.Descriptor
	// Connected and Connecting are mutually exclusive
	Connected  bool
	Connecting bool
	// Accounts belong to the selected wallet; empty when disconnected
	Accounts []wallet.Account
	// SelectedAccount is an address in Accounts, or empty
	SelectedAccount string
	// Cluster is the active network, or nil
	Cluster *cluster.Cluster
	// Clusters is the fixed configured set, established at construction
	Clusters []cluster.Cluster
}

// CheckConsistency verifies the aggregate invariants and returns one error
// per violation. A healthy state returns nil.
func (s *ConnectorState) CheckConsistency() []error {
	var errs []error

	if s.Connected && s.SelectedWallet == nil {
		errs = append(errs, errors.New(errors.ErrorTypeHealth, "connected without a selected wallet"))
	}
	if s.Connected && s.SelectedAccount == "" {
		errs = append(errs, errors.New(errors.ErrorTypeHealth, "connected without a selected account"))
	}
	if s.Connected && s.Connecting {
		errs = append(errs, errors.New(errors.ErrorTypeHealth, "connected and connecting are both set"))
	}
	if s.SelectedAccount != "" && !containsAddress(s.Accounts, s.SelectedAccount) {
		errs = append(errs, errors.New(errors.ErrorTypeHealth, "selected account is not in the account list").
			WithDetail("address", s.SelectedAccount))
	}
	if name, dup := duplicateWalletName(s.Wallets); dup {
		errs = append(errs, errors.New(errors.ErrorTypeHealth, "duplicate wallet name").
			WithDetail("wallet", name))
	}
	if s.Cluster != nil && !containsCluster(s.Clusters, s.Cluster.ID) {
		errs = append(errs, errors.New(errors.ErrorTypeHealth, "active cluster is not in the configured set").
			WithDetail("cluster", s.Cluster.ID))
	}

	return errs
}

func containsAddress(accounts []wallet.Account, address string) bool {
	for _, a := range accounts {
		if a.Address == address {
			return true
		}
	}
	return false
}

func containsCluster(clusters []cluster.Cluster, id string) bool {
	for _, c := range clusters {
		if c.ID == id {
			return true
		}
	}
	return false
}

func duplicateWalletName(wallets []wallet.Descriptor) (string, bool) {
	seen := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		if seen[w.Name] {
			return w.Name, true
		}
		seen[w.Name] = true
	}
	return "", false
}

// walletsEqual compares wallet slices element-wise by name sequence.
func walletsEqual(a, b []wallet.Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Installed != b[i].Installed ||
			a[i].Connectable != b[i].Connectable {
			return false
		}
	}
	return true
}

// accountsEqual compares account slices element-wise by address sequence.
func accountsEqual(a, b []wallet.Account) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Address != b[i].Address {
			return false
		}
	}
	return true
}

// descriptorsEqual compares selected wallet descriptors, treating nil as
// equal only to nil.
func descriptorsEqual(a, b *wallet.Descriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.Icon != b.Icon || a.Installed != b.Installed ||
		a.Connectable != b.Connectable {
		return false
	}
	return strings.Join(a.Chains, ",") == strings.Join(b.Chains, ",")
}

// clustersEqual compares active clusters by id.
func clustersEqual(a, b *cluster.Cluster) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
