package state

import (
	"sync"
	"time"

	"github.com/solwire/solwire/pkg/cluster"
	"github.com/solwire/solwire/pkg/logger"
	"github.com/solwire/solwire/pkg/metrics"
	"github.com/solwire/solwire/pkg/wallet"
	"go.uber.org/zap"
)

// Mutation describes one requested change to the aggregate. Mutations are
// composed into a single Apply call; the store diffs each against the
// current value and drops the ones that would not change anything.
type Mutation func(*delta)

type delta struct {
	wallets            []wallet.Descriptor
	hasWallets         bool
	selectedWallet     *wallet.Descriptor
	hasSelectedWallet  bool
	connected          bool
	hasConnected       bool
	connecting         bool
	hasConnecting      bool
	accounts           []wallet.Account
	hasAccounts        bool
	selectedAccount    string
	hasSelectedAccount bool
	cluster            *cluster.Cluster
	hasCluster         bool
}

// Wallets sets the discovered wallet list.
func Wallets(ws []wallet.Descriptor) Mutation {
	return func(d *delta) { d.wallets = ws; d.hasWallets = true }
}

// SelectedWallet sets (or clears, with nil) the active wallet.
func SelectedWallet(w *wallet.Descriptor) Mutation {
	return func(d *delta) { d.selectedWallet = w; d.hasSelectedWallet = true }
}

// Connected sets the connected flag.
func Connected(v bool) Mutation {
	return func(d *delta) { d.connected = v; d.hasConnected = true }
}

// Connecting sets the connecting flag.
func Connecting(v bool) Mutation {
	return func(d *delta) { d.connecting = v; d.hasConnecting = true }
}

// Accounts sets the session account list.
func Accounts(a []wallet.Account) Mutation {
	return func(d *delta) { d.accounts = a; d.hasAccounts = true }
}

// SelectedAccount sets (or clears, with "") the active account address.
func SelectedAccount(addr string) Mutation {
	return func(d *delta) { d.selectedAccount = addr; d.hasSelectedAccount = true }
}

// ActiveCluster sets (or clears, with nil) the active cluster.
func ActiveCluster(c *cluster.Cluster) Mutation {
	return func(d *delta) { d.cluster = c; d.hasCluster = true }
}

// Metrics are the store's update and notification counters, exposed for
// debug diagnostics.
type Metrics struct {
	AppliedUpdates    uint64        `json:"applied_updates"`
	NoopUpdates       uint64        `json:"noop_updates"`
	ImmediateNotifies uint64        `json:"immediate_notifies"`
	CoalescedNotifies uint64        `json:"coalesced_notifies"`
	LastNotifyAt      time.Time     `json:"last_notify_at"`
	LastNotifyLatency time.Duration `json:"last_notify_latency"`
}

// Store owns the ConnectorState aggregate.
type Store struct {
	mu        sync.Mutex
	current   *ConnectorState
	listeners map[int]func(*ConnectorState)
	nextID    int

	clock    Clock
	debounce time.Duration
	pending  Timer
	dirtyAt  time.Time // when the oldest unpublished change was applied

	metrics Metrics
	closed  bool
	logger  *zap.Logger
}

// NewStore creates a store seeded with the given initial state. The clock
// may be nil, in which case real timers are used. The debounce duration
// is the coalescing window for non-immediate updates.
func NewStore(initial ConnectorState, clock Clock, debounce time.Duration) *Store {
	if clock == nil {
		clock = RealClock()
	}
	return &Store{
		current:   &initial,
		listeners: make(map[int]func(*ConnectorState)),
		clock:     clock,
		debounce:  debounce,
		logger:    logger.Get().With(zap.String("component", "state_store")),
	}
}

// Snapshot returns the current state object by reference. Callers must
// treat it as immutable; the store replaces the whole object on every
// applied change.
func (s *Store) Snapshot() *ConnectorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe registers a listener for state notifications. Unsubscribing
// during a notification is safe and does not affect other listeners.
func (s *Store) Subscribe(listener func(*ConnectorState)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Apply applies the mutations as one update. Only keys whose value
// actually changed (per type-appropriate structural equality) are
// written; if nothing changed the update is a counted no-op and nothing
// is published. It reports whether any key was applied.
//
// Immediate updates notify subscribers synchronously, before Apply
// returns, and supersede any pending coalesced notification. Standard
// updates schedule (or reschedule) the debounce timer.
func (s *Store) Apply(immediate bool, mutations ...Mutation) bool {
	var d delta
	for _, m := range mutations {
		m(&d)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}

	next := *s.current
	changed := false

	if d.hasWallets && !walletsEqual(s.current.Wallets, d.wallets) {
		next.Wallets = d.wallets
		changed = true
	}
	if d.hasSelectedWallet && !descriptorsEqual(s.current.SelectedWallet, d.selectedWallet) {
		next.SelectedWallet = d.selectedWallet
		changed = true
	}
	if d.hasConnected && s.current.Connected != d.connected {
		next.Connected = d.connected
		changed = true
	}
	if d.hasConnecting && s.current.Connecting != d.connecting {
		next.Connecting = d.connecting
		changed = true
	}
	if d.hasAccounts && !accountsEqual(s.current.Accounts, d.accounts) {
		next.Accounts = d.accounts
		changed = true
	}
	if d.hasSelectedAccount && s.current.SelectedAccount != d.selectedAccount {
		next.SelectedAccount = d.selectedAccount
		changed = true
	}
	if d.hasCluster && !clustersEqual(s.current.Cluster, d.cluster) {
		next.Cluster = d.cluster
		changed = true
	}

	if !changed {
		s.metrics.NoopUpdates++
		s.mu.Unlock()
		return false
	}

	s.current = &next
	s.metrics.AppliedUpdates++
	if s.dirtyAt.IsZero() {
		s.dirtyAt = s.clock.Now()
	}

	if immediate {
		s.metrics.ImmediateNotifies++
		s.notifyLocked() // unlocks
		return true
	}

	s.scheduleLocked()
	s.mu.Unlock()
	return true
}

// scheduleLocked arms the debounce timer with cancel-and-reschedule
// semantics. Callers hold s.mu.
func (s *Store) scheduleLocked() {
	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = s.clock.AfterFunc(s.debounce, s.flush)
}

// flush delivers the pending coalesced notification.
func (s *Store) flush() {
	s.mu.Lock()
	if s.closed || s.dirtyAt.IsZero() {
		s.mu.Unlock()
		return
	}
	s.metrics.CoalescedNotifies++
	s.notifyLocked()
}

// notifyLocked snapshots the listener set and current state, releases the
// lock, and dispatches. A listener unsubscribing mid-dispatch cannot skip
// the others. Callers hold s.mu; the lock is released on return.
func (s *Store) notifyLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if !s.dirtyAt.IsZero() {
		latency := s.clock.Now().Sub(s.dirtyAt)
		s.metrics.LastNotifyLatency = latency
		metrics.NotifyLatency.Observe(float64(latency.Nanoseconds()))
	}
	s.metrics.LastNotifyAt = s.clock.Now()
	s.dirtyAt = time.Time{}

	snapshot := s.current
	targets := make([]func(*ConnectorState), 0, len(s.listeners))
	for _, l := range s.listeners {
		targets = append(targets, l)
	}
	s.mu.Unlock()

	for _, l := range targets {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("state subscriber panicked", zap.Any("panic", r))
				}
			}()
			l(snapshot)
		}()
	}
}

// Metrics returns a copy of the update and notification counters.
func (s *Store) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Close cancels any pending timer and drops all listeners. The store
// rejects further updates.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.listeners = make(map[int]func(*ConnectorState))
}
