package client

import (
	"sync"

	"github.com/solwire/solwire/pkg/events"
	"github.com/solwire/solwire/pkg/state"
	"github.com/solwire/solwire/pkg/wallet"
	"go.uber.org/zap"
)

// AccountChangeSource watches the active wallet for account list changes.
// Two implementations exist, selected at connect time by capability
// detection: a subscription over the wallet's native change events, and a
// coarse polling fallback for wallets without one.
type AccountChangeSource interface {
	Start()
	Stop()
}

// startAccountSource attaches the appropriate change source for the
// session. gen pins the source to the session generation so callbacks
// arriving after disconnect are discarded.
func (c *Client) startAccountSource(handle wallet.Handle, gen uint64) {
	var source AccountChangeSource
	if eventsFeature, ok := wallet.EventsFeatureOf(handle); ok {
		source = &eventAccountSource{client: c, feature: eventsFeature, gen: gen}
	} else {
		source = &pollingAccountSource{client: c, handle: handle, gen: gen}
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		return
	}
	c.stopAccountSourceLocked()
	c.accountSource = source
	c.mu.Unlock()

	source.Start()
}

// stopAccountSourceLocked stops the current source. Callers hold c.mu.
func (c *Client) stopAccountSourceLocked() {
	if c.accountSource != nil {
		c.accountSource.Stop()
		c.accountSource = nil
	}
}

// applyAccountChange folds a fresh account list into the session state.
// Empty lists are ignored: a wallet transiently reporting no accounts
// must not tear down the session. The selected account is preserved when
// still present; otherwise the first account takes over.
func (c *Client) applyAccountChange(gen uint64, raw []wallet.RawAccount) {
	if len(raw) == 0 {
		return
	}

	c.mu.Lock()
	if gen != c.generation || c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	accounts := wallet.MapAccounts(raw)
	snapshot := c.store.Snapshot()

	selected := snapshot.SelectedAccount
	if selected == "" || !containsAccount(accounts, selected) {
		selected = accounts[0].Address
	}

	changed := c.store.Apply(false,
		state.Accounts(accounts),
		state.SelectedAccount(selected),
	)
	if changed && selected != snapshot.SelectedAccount {
		c.emit(events.Event{Type: events.TypeAccountChanged, Account: selected})
	}
}

// eventAccountSource subscribes to the wallet's native change events.
type eventAccountSource struct {
	client  *Client
	feature wallet.EventsFeature
	gen     uint64

	mu    sync.Mutex
	unsub func()
}

func (s *eventAccountSource) Start() {
	unsub := s.feature.OnAccountsChanged(func(accounts []wallet.RawAccount) {
		s.client.applyAccountChange(s.gen, accounts)
	})

	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()

	s.client.logger.Debug("account change source started",
		zap.String("strategy", "events"))
}

func (s *eventAccountSource) Stop() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// pollingAccountSource periodically reads the wallet's exposed account
// list. It only pushes an update when the list transitions from empty to
// non-empty; it never overrides an already-selected account on its own.
type pollingAccountSource struct {
	client *Client
	handle wallet.Handle
	gen    uint64

	mu       sync.Mutex
	timer    state.Timer
	stopped  bool
	lastSeen int // account count at the previous poll
}

func (s *pollingAccountSource) Start() {
	// Seed the baseline so the first poll does not mistake the session's
	// existing accounts for an empty-to-non-empty transition.
	s.mu.Lock()
	s.lastSeen = len(s.handle.Accounts())
	s.mu.Unlock()

	s.client.logger.Debug("account change source started",
		zap.String("strategy", "polling"))
	s.schedule()
}

func (s *pollingAccountSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *pollingAccountSource) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.timer = s.client.clock.AfterFunc(s.client.cfg.Polling.Interval, s.poll)
}

func (s *pollingAccountSource) poll() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	last := s.lastSeen
	s.mu.Unlock()

	accounts := s.handle.Accounts()

	s.mu.Lock()
	s.lastSeen = len(accounts)
	s.mu.Unlock()

	if last == 0 && len(accounts) > 0 {
		s.client.applyAccountChange(s.gen, accounts)
	}

	s.schedule()
}
