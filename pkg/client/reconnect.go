package client

import (
	"context"

	"github.com/solwire/solwire/pkg/errors"
	"github.com/solwire/solwire/pkg/metrics"
	"github.com/solwire/solwire/pkg/wallet"
	"go.uber.org/zap"
)

// InjectionProbe checks a well-known direct injection point for a wallet
// matching the persisted name, bypassing standard discovery. Each probe
// owns exactly one legacy provider shape and synthesizes a minimal
// capability wrapper around it; new legacy formats get a new probe rather
// than another conditional branch.
type InjectionProbe interface {
	// Name identifies the probe for logging
	Name() string
	// Probe returns a handle for the wallet when the injection point
	// exposes it
	Probe(walletName string) (wallet.Handle, bool)
}

// AutoReconnect attempts to silently restore the persisted wallet
// session. It is best-effort and never fatal: every failure is absorbed
// and reported only through events and logs.
//
// The instant path probes direct injection points first, optimizing for
// perceived reconnect latency. When it finds nothing (or fails), the
// standard discovery path takes over, with one bounded retry after a
// short delay for wallets that register late. Both paths bail out when a
// session is already established by the time they run.
func (c *Client) AutoReconnect(ctx context.Context) {
	name, ok := c.walletStore.Get()
	if !ok || name == "" {
		return
	}

	log := c.logger.With(zap.String("wallet", name))

	if c.skipReconnect() {
		metrics.ReconnectsTotal.WithLabelValues("instant", "skipped").Inc()
		return
	}

	// Instant path: direct injection, no discovery round trip.
	for _, probe := range c.probes {
		handle, found := probe.Probe(name)
		if !found {
			continue
		}
		log.Debug("instant reconnect probe matched", zap.String("probe", probe.Name()))
		if err := c.reconnectHandle(ctx, handle); err != nil {
			log.Debug("instant reconnect failed", zap.String("probe", probe.Name()), zap.Error(err))
			metrics.ReconnectsTotal.WithLabelValues("instant", "failure").Inc()
			continue
		}
		metrics.ReconnectsTotal.WithLabelValues("instant", "success").Inc()
		return
	}

	// Standard discovery path.
	if handle, found := c.registry.Lookup(name); found {
		c.finishDiscoveryReconnect(ctx, handle, log)
		return
	}

	// The wallet may register after startup; wait once and retry.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.reconnectTimer = c.clock.AfterFunc(c.cfg.Reconnect.RetryDelay, func() {
		if c.skipReconnect() {
			metrics.ReconnectsTotal.WithLabelValues("discovery", "skipped").Inc()
			return
		}
		handle, found := c.registry.Lookup(name)
		if !found {
			log.Debug("wallet never appeared in registry, giving up reconnect")
			metrics.ReconnectsTotal.WithLabelValues("discovery", "failure").Inc()
			return
		}
		c.finishDiscoveryReconnect(context.Background(), handle, log)
	})
	c.mu.Unlock()
}

func (c *Client) finishDiscoveryReconnect(ctx context.Context, handle wallet.Handle, log *zap.Logger) {
	if err := c.reconnectHandle(ctx, handle); err != nil {
		log.Debug("discovery reconnect failed", zap.Error(err))
		metrics.ReconnectsTotal.WithLabelValues("discovery", "failure").Inc()
		return
	}
	metrics.ReconnectsTotal.WithLabelValues("discovery", "success").Inc()
}

// reconnectHandle runs a silent connect against the handle under a fresh
// session generation.
func (c *Client) reconnectHandle(ctx context.Context, handle wallet.Handle) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "client is closed")
	}
	snap := c.store.Snapshot()
	if snap.Connected || snap.Connecting {
		c.mu.Unlock()
		return errors.New(errors.ErrorTypeConflict, "session already active")
	}
	gen := c.bumpGenerationLocked()
	c.mu.Unlock()

	return c.connectHandle(ctx, handle, gen, true)
}

// skipReconnect reports whether auto-reconnect should not run at all:
// the client is closed or a session is already established.
func (c *Client) skipReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	snap := c.store.Snapshot()
	return snap.Connected || snap.Connecting
}
