package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/pkg/cluster"
	"github.com/solwire/solwire/pkg/wallet"
)

// fakeClock drives debounce timers deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
	fired    bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and fires due timers outside the lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

const testDebounce = 16 * time.Millisecond

func devnet() *cluster.Cluster {
	return &cluster.Cluster{ID: cluster.DevnetID, Label: "Devnet", Endpoint: "https://api.devnet.solana.com"}
}

func newTestStore(clock Clock) *Store {
	return NewStore(ConnectorState{}, clock, testDebounce)
}

func TestApplyNoopSuppressed(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	notified := 0
	s.Subscribe(func(*ConnectorState) { notified++ })

	// Setting a value to what it already is must not publish.
	assert.False(t, s.Apply(false, Connected(false)))
	assert.False(t, s.Apply(false, SelectedAccount("")))
	assert.False(t, s.Apply(true, Accounts(nil)))

	clock.Advance(testDebounce * 2)
	assert.Equal(t, 0, notified)

	m := s.Metrics()
	assert.Equal(t, uint64(3), m.NoopUpdates)
	assert.Equal(t, uint64(0), m.AppliedUpdates)
}

func TestApplyPartialUpdatePreservesOtherKeys(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	require.True(t, s.Apply(true, SelectedAccount("addr1"), Accounts([]wallet.Account{{Address: "addr1"}})))
	require.True(t, s.Apply(true, ActiveCluster(devnet())))

	snap := s.Snapshot()
	assert.Equal(t, "addr1", snap.SelectedAccount)
	require.NotNil(t, snap.Cluster)
	assert.Equal(t, cluster.DevnetID, snap.Cluster.ID)
}

func TestApplyReplacesStateObject(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	before := s.Snapshot()
	require.True(t, s.Apply(true, Connecting(true)))
	after := s.Snapshot()

	// Reference inequality lets consumers use cheap identity checks.
	assert.NotSame(t, before, after)
	assert.False(t, before.Connecting)
	assert.True(t, after.Connecting)
}

func TestCoalescedNotification(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	var got []*ConnectorState
	s.Subscribe(func(snap *ConnectorState) { got = append(got, snap) })

	s.Apply(false, Wallets([]wallet.Descriptor{{Name: "Phantom"}}))
	clock.Advance(testDebounce / 2)
	s.Apply(false, Wallets([]wallet.Descriptor{{Name: "Phantom"}, {Name: "Solflare"}}))

	// The first timer was rescheduled; nothing published yet.
	assert.Empty(t, got)

	clock.Advance(testDebounce)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Wallets, 2)

	m := s.Metrics()
	assert.Equal(t, uint64(1), m.CoalescedNotifies)
	assert.Equal(t, uint64(2), m.AppliedUpdates)
}

func TestImmediateNotifiesSynchronously(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	notified := 0
	s.Subscribe(func(snap *ConnectorState) {
		notified++
		assert.True(t, snap.Connecting)
	})

	s.Apply(true, Connecting(true))
	assert.Equal(t, 1, notified)
	assert.Equal(t, uint64(1), s.Metrics().ImmediateNotifies)
}

func TestImmediateSupersedesPendingCoalesced(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	notified := 0
	s.Subscribe(func(*ConnectorState) { notified++ })

	s.Apply(false, Wallets([]wallet.Descriptor{{Name: "Phantom"}}))
	s.Apply(true, Connecting(true))
	assert.Equal(t, 1, notified)

	// The pending debounce flush was absorbed by the immediate notify.
	clock.Advance(testDebounce * 2)
	assert.Equal(t, 1, notified)
	assert.Equal(t, uint64(0), s.Metrics().CoalescedNotifies)
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	var unsubA func()
	aCalls, bCalls := 0, 0
	unsubA = s.Subscribe(func(*ConnectorState) {
		aCalls++
		unsubA()
	})
	s.Subscribe(func(*ConnectorState) { bCalls++ })

	s.Apply(true, Connecting(true))
	s.Apply(true, Connecting(false))

	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 2, bCalls)
}

func TestSubscriberPanicIsolated(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	defer s.Close()

	survived := 0
	s.Subscribe(func(*ConnectorState) { panic("listener bug") })
	s.Subscribe(func(*ConnectorState) { survived++ })

	assert.NotPanics(t, func() {
		s.Apply(true, Connecting(true))
	})
	assert.Equal(t, 1, survived)
}

func TestCloseRejectsUpdates(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	notified := 0
	s.Subscribe(func(*ConnectorState) { notified++ })

	s.Apply(false, Connecting(true))
	s.Close()
	clock.Advance(testDebounce * 2)
	assert.Equal(t, 0, notified)

	assert.False(t, s.Apply(true, Connected(true)))
}

func TestCheckConsistency(t *testing.T) {
	phantom := wallet.Descriptor{Name: "Phantom", Installed: true, Connectable: true}
	dev := devnet()

	tests := []struct {
		name       string
		state      ConnectorState
		violations int
	}{
		{
			name:       "disconnected zero state",
			state:      ConnectorState{},
			violations: 0,
		},
		{
			name: "healthy connected state",
			state: ConnectorState{
				Wallets:         []wallet.Descriptor{phantom},
				SelectedWallet:  &phantom,
				Connected:       true,
				Accounts:        []wallet.Account{{Address: "addr1"}},
				SelectedAccount: "addr1",
				Cluster:         dev,
				Clusters:        []cluster.Cluster{*dev},
			},
			violations: 0,
		},
		{
			name: "connected without wallet or account",
			state: ConnectorState{
				Connected: true,
			},
			violations: 2,
		},
		{
			name: "connected and connecting",
			state: ConnectorState{
				SelectedWallet:  &phantom,
				Connected:       true,
				Connecting:      true,
				Accounts:        []wallet.Account{{Address: "addr1"}},
				SelectedAccount: "addr1",
			},
			violations: 1,
		},
		{
			name: "selected account not in list",
			state: ConnectorState{
				SelectedAccount: "ghost",
			},
			violations: 1,
		},
		{
			name: "duplicate wallet names",
			state: ConnectorState{
				Wallets: []wallet.Descriptor{phantom, phantom},
			},
			violations: 1,
		},
		{
			name: "active cluster outside configured set",
			state: ConnectorState{
				Cluster:  dev,
				Clusters: []cluster.Cluster{{ID: cluster.MainnetID, Endpoint: "https://api.mainnet-beta.solana.com"}},
			},
			violations: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.state.CheckConsistency()
			assert.Len(t, errs, tt.violations)
		})
	}
}
