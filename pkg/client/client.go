// Package client implements the connection lifecycle controller: the
// public surface of the Solwire connector. It orchestrates connect,
// disconnect, account selection and cluster switching over the state
// store, the wallet registry, the persistence adapter and the event bus.
//
// The client guards against stale asynchronous results with a session
// generation counter: every lifecycle mutation bumps the generation, and
// late results carrying an old generation are discarded instead of
// resurrecting superseded state (e.g. a connect resolving after an
// explicit disconnect).
package client

import (
	"context"
	"sync"
	"time"

	"github.com/solwire/solwire/pkg/cluster"
	"github.com/solwire/solwire/pkg/config"
	"github.com/solwire/solwire/pkg/errors"
	"github.com/solwire/solwire/pkg/events"
	"github.com/solwire/solwire/pkg/logger"
	"github.com/solwire/solwire/pkg/metrics"
	"github.com/solwire/solwire/pkg/observability"
	"github.com/solwire/solwire/pkg/rpc"
	"github.com/solwire/solwire/pkg/state"
	"github.com/solwire/solwire/pkg/storage"
	"github.com/solwire/solwire/pkg/wallet"
	"github.com/solwire/solwire/pkg/wallet/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options carries the injectable collaborators of a Client. All fields
// are optional: missing sources mean no wallets are discoverable, a nil
// KV selects the configured backend, a nil Clock uses real timers.
type Options struct {
	// Sources are the wallet discovery sources
	Sources []registry.DiscoverySource
	// KV overrides the persistence backend
	KV storage.KV
	// Clock overrides timer scheduling (tests)
	Clock state.Clock
	// Probes are the legacy injection probes for instant reconnect
	Probes []InjectionProbe
}

// Client is the connector state client.
type Client struct {
	cfg      *config.Config
	clusters *cluster.Set
	registry *registry.Registry
	bus      *events.Bus
	store    *state.Store
	clock    state.Clock
	probes   []InjectionProbe

	walletStore  *storage.Store
	clusterStore *storage.Store

	rpcMu      sync.Mutex
	rpcClients map[string]*rpc.Client

	mu             sync.Mutex
	generation     uint64
	activeHandle   wallet.Handle
	accountSource  AccountChangeSource
	prevAccounts   map[string]bool
	reconnectTimer state.Timer
	txTimers       map[uint64]state.Timer
	txNextID       uint64
	registryUnsub  func()
	initialized    bool
	closed         bool

	tracing bool
	logger  *zap.Logger
}

// New constructs a client from configuration and collaborators. The
// cluster selection is seeded from the persisted value when present and
// valid, otherwise from the configured default. When auto-reconnect is
// enabled and a wallet name is persisted, a silent reconnect starts in
// the background.
func New(cfg *config.Config, opts Options) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "invalid configuration")
	}

	clusters, err := cfg.ClusterSet()
	if err != nil {
		return nil, err
	}

	if cfg.Observability.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.SamplingRate = cfg.Observability.TracingSampleRate
		if err := observability.Initialize(tc); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to initialize tracing")
		}
	}

	kv := opts.KV
	if kv == nil {
		if cfg.Storage.Path != "" {
			kv = storage.NewFileKV(cfg.Storage.Path)
		} else {
			kv = storage.NewMemoryKV()
		}
	}

	clock := opts.Clock
	if clock == nil {
		clock = state.RealClock()
	}

	c := &Client{
		cfg:          cfg,
		clusters:     clusters,
		bus:          events.NewBus(),
		clock:        clock,
		probes:       opts.Probes,
		prevAccounts: make(map[string]bool),
		tracing:      cfg.Observability.EnableTracing,
		logger:       logger.Get().With(zap.String("component", "connector_client")),
	}

	prefix := cfg.Storage.KeyPrefix
	c.walletStore = storage.NewStore(kv, prefix+":last-wallet", func(v string) bool {
		return v != ""
	})
	c.clusterStore = storage.NewStore(kv, prefix+":last-cluster", clusters.Contains)

	active := c.initialCluster()
	c.store = state.NewStore(state.ConnectorState{
		Cluster:  &active,
		Clusters: clusters.All(),
	}, clock, cfg.Notify.Debounce)

	c.registry = registry.New(cluster.ChainFamily, opts.Sources...)
	c.registryUnsub = c.registry.Subscribe(c.onDiscoveryChange)
	c.onDiscoveryChange()

	c.initialized = true

	if cfg.Reconnect.Enabled {
		if name, ok := c.walletStore.Get(); ok && name != "" {
			go c.AutoReconnect(context.Background())
		}
	}

	return c, nil
}

// initialCluster resolves the starting cluster from persistence, falling
// back to the configured default.
func (c *Client) initialCluster() cluster.Cluster {
	if id, ok := c.clusterStore.Get(); ok {
		if cl, found := c.clusters.Lookup(id); found {
			return cl
		}
		c.logger.Warn("persisted cluster not in configured set, using default",
			zap.String("cluster", id))
	}
	cl, _ := c.clusters.Lookup(c.cfg.DefaultCluster)
	return cl
}

// onDiscoveryChange mirrors the registry into the state store and tells
// observers how many wallets are visible. Wallet list churn is routine,
// so the update is coalesced rather than immediate.
func (c *Client) onDiscoveryChange() {
	descriptors := c.registry.List()
	changed := c.store.Apply(false, state.Wallets(descriptors))
	metrics.WalletsDetected.Set(float64(len(descriptors)))
	if changed {
		metrics.StateUpdatesTotal.WithLabelValues("coalesced").Inc()
		c.emit(events.Event{Type: events.TypeWalletsDetected, Count: len(descriptors)})
	}
}

// Connect establishes a session with the named wallet. The connect
// capability is invoked non-silently: an explicit user-initiated connect
// must be allowed to prompt.
//
// On failure the state is reset to the fully disconnected shape, a
// connection:failed and an error event are emitted, and the failure is
// returned to the caller.
func (c *Client) Connect(ctx context.Context, walletName string) error {
	ctx, span := observability.StartSpan(ctx, "solwire.connect",
		attribute.String("wallet", walletName))
	err := c.connect(ctx, walletName)
	observability.EndSpan(span, err)
	return err
}

func (c *Client) connect(ctx context.Context, walletName string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "client is closed")
	}
	if c.store.Snapshot().Connecting {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeConflict, "a connect is already in flight").
			WithDetail("wallet", walletName)
	}

	handle, ok := c.registry.Lookup(walletName)
	if !ok {
		c.mu.Unlock()
		metrics.ConnectsTotal.WithLabelValues(walletName, "not_found").Inc()
		return errors.New(errors.ErrorTypeNotFound, "wallet not found in registry").
			WithDetail("wallet", walletName)
	}
	gen := c.bumpGenerationLocked()
	c.mu.Unlock()

	return c.connectHandle(ctx, handle, gen, false)
}

// connectHandle runs the shared connect flow for explicit connects
// (silent=false) and auto-reconnect probing (silent=true). gen is the
// session generation the result belongs to; stale results are discarded.
func (c *Client) connectHandle(ctx context.Context, handle wallet.Handle, gen uint64, silent bool) error {
	name := handle.Name()
	timer := metrics.NewTimer("connect")
	ctx = context.WithValue(ctx, logger.WalletKey, name)
	log := logger.WithContext(ctx).With(
		zap.String("component", "connector_client"),
		zap.Bool("silent", silent))

	descriptor := wallet.MapDescriptor(handle, cluster.ChainFamily)
	if !descriptor.Connectable {
		metrics.ConnectsTotal.WithLabelValues(name, "failure").Inc()
		return errors.New(errors.ErrorTypeConnection, "wallet is not connectable").
			WithDetail("wallet", name)
	}
	connectFeature, _ := wallet.ConnectFeatureOf(handle)

	c.emit(events.Event{Type: events.TypeConnecting, Wallet: name})
	c.store.Apply(true, state.Connecting(true))
	metrics.StateUpdatesTotal.WithLabelValues("immediate").Inc()

	returned, err := connectFeature.Connect(ctx, silent)
	if err != nil {
		log.Warn("wallet connect rejected", zap.Error(err))
		c.resetToDisconnected(gen)
		c.emit(events.Event{Type: events.TypeConnectionFailed, Wallet: name, Err: err})
		c.emit(events.Event{Type: events.TypeError, Wallet: name, Err: err, Context: "connect"})
		metrics.ConnectsTotal.WithLabelValues(name, "failure").Inc()
		return errors.Wrap(err, errors.ErrorTypeConnection, "wallet connection failed").
			WithDetail("wallet", name)
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		log.Debug("discarding stale connect result")
		return errors.New(errors.ErrorTypeConflict, "connect superseded").
			WithDetail("wallet", name)
	}

	// Merge returned accounts with the handle's live list, first
	// occurrence per address wins.
	merged := wallet.MapAccounts(append(append([]wallet.RawAccount{}, returned...), handle.Accounts()...))
	if len(merged) == 0 {
		c.mu.Unlock()
		log.Warn("wallet connect returned no accounts")
		err := errors.New(errors.ErrorTypeConnection, "wallet exposed no accounts").
			WithDetail("wallet", name)
		c.resetToDisconnected(gen)
		c.emit(events.Event{Type: events.TypeConnectionFailed, Wallet: name, Err: err})
		c.emit(events.Event{Type: events.TypeError, Wallet: name, Err: err, Context: "connect"})
		metrics.ConnectsTotal.WithLabelValues(name, "failure").Inc()
		return err
	}
	selected := c.selectAfterConnectLocked(merged)

	c.activeHandle = handle
	c.prevAccounts = make(map[string]bool, len(merged))
	for _, a := range merged {
		c.prevAccounts[a.Address] = true
	}
	c.mu.Unlock()

	c.store.Apply(true,
		state.Connected(true),
		state.Connecting(false),
		state.SelectedWallet(&descriptor),
		state.Accounts(merged),
		state.SelectedAccount(selected),
	)
	metrics.StateUpdatesTotal.WithLabelValues("immediate").Inc()

	c.walletStore.Set(name)
	c.startAccountSource(handle, gen)

	c.emit(events.Event{Type: events.TypeWalletConnected, Wallet: name, Account: selected})
	metrics.ConnectsTotal.WithLabelValues(name, "success").Inc()
	log.Info("wallet connected",
		zap.Int("accounts", len(merged)),
		zap.String("selected", selected),
		zap.Duration("elapsed", timer.Stop()))
	return nil
}

// selectAfterConnectLocked applies the account selection policy: prefer
// an address the previous session did not expose (the account the user
// just authorized), else keep the previous selection if still present,
// else the first account, else none. Callers hold c.mu.
func (c *Client) selectAfterConnectLocked(accounts []wallet.Account) string {
	if len(accounts) == 0 {
		return ""
	}
	for _, a := range accounts {
		if !c.prevAccounts[a.Address] {
			return a.Address
		}
	}
	previous := c.store.Snapshot().SelectedAccount
	for _, a := range accounts {
		if a.Address == previous {
			return previous
		}
	}
	return accounts[0].Address
}

// Disconnect tears down the application's view of the session. The
// wallet-side disconnect is best-effort: its failure is swallowed because
// disconnecting locally must succeed regardless. A fresh discovery pass
// runs afterwards so a chooser surface sees all installed wallets again.
func (c *Client) Disconnect(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "solwire.disconnect")
	err := c.disconnect(ctx)
	observability.EndSpan(span, err)
	return err
}

func (c *Client) disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "client is closed")
	}
	gen := c.bumpGenerationLocked()
	handle := c.activeHandle
	c.activeHandle = nil
	c.stopAccountSourceLocked()
	c.mu.Unlock()

	name := ""
	if handle != nil {
		name = handle.Name()
		if disconnectFeature, ok := wallet.DisconnectFeatureOf(handle); ok {
			if err := disconnectFeature.Disconnect(ctx); err != nil {
				c.logger.Warn("wallet-side disconnect failed",
					zap.String("wallet", name), zap.Error(err))
			}
		}
	}

	c.resetToDisconnected(gen)
	c.emit(events.Event{Type: events.TypeWalletDisconnected, Wallet: name})
	if name != "" {
		metrics.DisconnectsTotal.WithLabelValues(name).Inc()
	}
	c.walletStore.Remove()
	c.registry.Refresh()
	return nil
}

// SelectAccount makes the given address the active account. When the
// address is not currently known, one reconnect refreshes the account
// list before failing.
func (c *Client) SelectAccount(ctx context.Context, address string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "client is closed")
	}
	handle := c.activeHandle
	c.mu.Unlock()

	snapshot := c.store.Snapshot()
	if handle == nil || !snapshot.Connected {
		return errors.New(errors.ErrorTypeNoWallet, "no wallet connected")
	}

	if containsAccount(snapshot.Accounts, address) {
		c.applySelection(address)
		return nil
	}

	// Unknown address: refresh the session account list once.
	connectFeature, ok := wallet.ConnectFeatureOf(handle)
	if !ok {
		return errors.New(errors.ErrorTypeAccount, "account not available").
			WithDetail("address", address)
	}
	returned, err := connectFeature.Connect(ctx, false)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeAccount, "failed to refresh accounts").
			WithDetail("address", address)
	}

	merged := wallet.MapAccounts(append(append([]wallet.RawAccount{}, returned...), handle.Accounts()...))
	if !containsAccount(merged, address) {
		return errors.New(errors.ErrorTypeAccount, "account not available").
			WithDetail("address", address)
	}

	// One atomic update: a published snapshot must never carry a
	// selection outside its account list.
	changed := c.store.Apply(true,
		state.Accounts(merged),
		state.SelectedAccount(address),
	)
	metrics.StateUpdatesTotal.WithLabelValues("immediate").Inc()
	if changed {
		c.emit(events.Event{Type: events.TypeAccountChanged, Account: address})
	}
	return nil
}

func (c *Client) applySelection(address string) {
	changed := c.store.Apply(true, state.SelectedAccount(address))
	metrics.StateUpdatesTotal.WithLabelValues("immediate").Inc()
	if changed {
		c.emit(events.Event{Type: events.TypeAccountChanged, Account: address})
	}
}

// SetCluster switches the active network. The selection is always
// persisted (an idempotent write), but cluster:changed is emitted only
// when the id actually differs from the previous one.
func (c *Client) SetCluster(ctx context.Context, id string) error {
	_, span := observability.StartSpan(ctx, "solwire.set_cluster",
		attribute.String("cluster", id))
	err := c.setCluster(id)
	observability.EndSpan(span, err)
	return err
}

func (c *Client) setCluster(id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "client is closed")
	}
	c.mu.Unlock()

	next, ok := c.clusters.Lookup(id)
	if !ok {
		return errors.New(errors.ErrorTypeCluster, "cluster not found").
			WithDetail("cluster", id)
	}

	previous := ""
	if snap := c.store.Snapshot(); snap.Cluster != nil {
		previous = snap.Cluster.ID
	}

	c.store.Apply(true, state.ActiveCluster(&next))
	metrics.StateUpdatesTotal.WithLabelValues("immediate").Inc()
	c.clusterStore.Set(id)

	if previous != id {
		c.emit(events.Event{
			Type:            events.TypeClusterChanged,
			Cluster:         id,
			PreviousCluster: previous,
		})
		c.logger.Info("cluster changed",
			zap.String("cluster", id), zap.String("previous", previous))
	}
	return nil
}

// Snapshot returns the current connector state. Callers must treat it as
// immutable.
func (c *Client) Snapshot() *state.ConnectorState {
	return c.store.Snapshot()
}

// Subscribe registers a state snapshot listener.
func (c *Client) Subscribe(listener func(*state.ConnectorState)) (unsubscribe func()) {
	return c.store.Subscribe(listener)
}

// On registers a lifecycle event listener.
func (c *Client) On(listener events.Listener) (unsubscribe func()) {
	return c.bus.On(listener)
}

// OffAll removes all lifecycle event listeners.
func (c *Client) OffAll() {
	c.bus.OffAll()
}

// Wallets returns the currently discovered wallet descriptors.
func (c *Client) Wallets() []wallet.Descriptor {
	return c.registry.List()
}

// ClusterEndpoint returns the RPC endpoint of the active cluster for
// external chain clients to consume.
func (c *Client) ClusterEndpoint() string {
	if snap := c.store.Snapshot(); snap.Cluster != nil {
		return snap.Cluster.Endpoint
	}
	return ""
}

// Close tears the client down: listeners cleared, timers cancelled,
// discovery subscriptions disposed. The client is unusable afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.bumpGenerationLocked()
	c.stopAccountSourceLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	for _, t := range c.txTimers {
		t.Stop()
	}
	c.txTimers = nil
	registryUnsub := c.registryUnsub
	c.registryUnsub = nil
	c.mu.Unlock()

	if registryUnsub != nil {
		registryUnsub()
	}
	c.registry.Close()
	c.store.Close()
	c.bus.OffAll()
	c.closeRPCClients()
	if c.tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := observability.Shutdown(ctx); err != nil {
			c.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		cancel()
	}
	c.logger.Info("client closed")
}

// resetToDisconnected applies the fully disconnected shape. The gen
// parameter ties the reset to the session that requested it; a reset for
// a superseded session is skipped.
func (c *Client) resetToDisconnected(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.store.Apply(true,
		state.Connected(false),
		state.Connecting(false),
		state.SelectedWallet(nil),
		state.Accounts(nil),
		state.SelectedAccount(""),
	)
	metrics.StateUpdatesTotal.WithLabelValues("immediate").Inc()
}

// bumpGenerationLocked advances the session generation. Callers hold c.mu.
func (c *Client) bumpGenerationLocked() uint64 {
	c.generation++
	return c.generation
}

func (c *Client) emit(event events.Event) {
	metrics.EventsEmittedTotal.WithLabelValues(string(event.Type)).Inc()
	c.bus.Emit(event)
}

func containsAccount(accounts []wallet.Account, address string) bool {
	for _, a := range accounts {
		if a.Address == address {
			return true
		}
	}
	return false
}
