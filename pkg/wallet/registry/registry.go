// Package registry presents a uniform, pollable and eventable view over
// however many wallet-discovery sources exist. Descriptors are returned in
// discovery order, deduplicated by name: when multiple handles share a
// name, the first one observed in iteration order wins. This tie-break is
// deterministic, not best-effort.
package registry

import (
	"sync"

	"github.com/solwire/solwire/pkg/logger"
	"github.com/solwire/solwire/pkg/wallet"
	"go.uber.org/zap"
)

// DiscoverySource is one origin of wallet handles (the standard registry,
// a direct injection probe, a test fixture).
type DiscoverySource interface {
	// List returns the currently known handles; pure read.
	List() []wallet.Handle
	// Subscribe registers for incremental discovery events and returns a
	// disposer. Sources that cannot push events may return a no-op
	// disposer.
	Subscribe(onRegister, onUnregister func(wallet.Handle)) (unsubscribe func())
}

// Registry manages wallet discovery across sources.
type Registry struct {
	sources     []DiscoverySource
	chainFamily string

	mu        sync.RWMutex
	handles   []wallet.Handle // discovery order, name-deduplicated
	byName    map[string]wallet.Handle
	listeners map[int]func()
	nextID    int
	disposers []func()
	logger    *zap.Logger
}

// New creates a registry over the given sources. A registry with no
// sources is valid: it lists nothing and subscriptions are no-ops, because
// absence of wallets is a normal, representable state rather than an
// error.
func New(chainFamily string, sources ...DiscoverySource) *Registry {
	r := &Registry{
		sources:     sources,
		chainFamily: chainFamily,
		byName:      make(map[string]wallet.Handle),
		listeners:   make(map[int]func()),
		logger:      logger.Get().With(zap.String("component", "wallet_registry")),
	}
	r.Refresh()
	for _, src := range sources {
		dispose := src.Subscribe(r.onRegister, r.onUnregister)
		if dispose != nil {
			r.disposers = append(r.disposers, dispose)
		}
	}
	return r
}

// Available reports whether any discovery source is attached.
func (r *Registry) Available() bool {
	return len(r.sources) > 0
}

// Refresh re-polls every source and rebuilds the handle list. Ordering
// follows source order then each source's iteration order; duplicate names
// keep their first occurrence.
func (r *Registry) Refresh() {
	r.mu.Lock()
	r.handles = r.handles[:0]
	r.byName = make(map[string]wallet.Handle)
	for _, src := range r.sources {
		for _, h := range src.List() {
			r.addLocked(h)
		}
	}
	count := len(r.handles)
	r.mu.Unlock()

	r.logger.Debug("wallet discovery refreshed", zap.Int("wallets", count))
	r.notify()
}

// List returns normalized descriptors for all known wallets in discovery
// order.
func (r *Registry) List() []wallet.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]wallet.Descriptor, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, wallet.MapDescriptor(h, r.chainFamily))
	}
	return out
}

// Lookup returns the live handle for a wallet name.
func (r *Registry) Lookup(name string) (wallet.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byName[name]
	return h, ok
}

// Count returns the number of known wallets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Subscribe registers a callback invoked after any change to the wallet
// list. The returned disposer is idempotent: calling it twice must not
// panic.
func (r *Registry) Subscribe(onChange func()) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = onChange
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Close disposes all source subscriptions and drops listeners.
func (r *Registry) Close() {
	r.mu.Lock()
	disposers := r.disposers
	r.disposers = nil
	r.listeners = make(map[int]func())
	r.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
}

func (r *Registry) onRegister(h wallet.Handle) {
	r.mu.Lock()
	added := r.addLocked(h)
	r.mu.Unlock()

	if added {
		r.logger.Info("wallet registered", zap.String("wallet", h.Name()))
		r.notify()
	}
}

func (r *Registry) onUnregister(h wallet.Handle) {
	name := h.Name()
	r.mu.Lock()
	_, exists := r.byName[name]
	if exists {
		delete(r.byName, name)
		for i, existing := range r.handles {
			if existing.Name() == name {
				r.handles = append(r.handles[:i], r.handles[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if exists {
		r.logger.Info("wallet unregistered", zap.String("wallet", name))
		r.notify()
	}
}

// addLocked inserts a handle unless its name is already present.
// First occurrence wins; callers hold r.mu.
func (r *Registry) addLocked(h wallet.Handle) bool {
	name := h.Name()
	if name == "" {
		return false
	}
	if _, exists := r.byName[name]; exists {
		return false
	}
	r.byName[name] = h
	r.handles = append(r.handles, h)
	return true
}

// notify invokes change listeners against a snapshot so that listeners
// unsubscribing during iteration cannot skip others.
func (r *Registry) notify() {
	r.mu.RLock()
	snapshot := make([]func(), 0, len(r.listeners))
	for _, l := range r.listeners {
		snapshot = append(snapshot, l)
	}
	r.mu.RUnlock()

	for _, l := range snapshot {
		l()
	}
}

// StaticSource is a DiscoverySource over a fixed handle list, useful for
// direct injection probing and tests.
type StaticSource struct {
	Handles []wallet.Handle
}

// List returns the fixed handles.
func (s *StaticSource) List() []wallet.Handle {
	return s.Handles
}

// Subscribe is a no-op for static sources.
func (s *StaticSource) Subscribe(onRegister, onUnregister func(wallet.Handle)) func() {
	return func() {}
}
