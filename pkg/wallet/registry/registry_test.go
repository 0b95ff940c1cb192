package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solwire/solwire/pkg/wallet"
)

type testHandle struct {
	name   string
	chains []string
}

func (h *testHandle) Name() string     { return h.name }
func (h *testHandle) Icon() string     { return "" }
func (h *testHandle) Chains() []string { return h.chains }
func (h *testHandle) Features() map[string]interface{} {
	return map[string]interface{}{
		wallet.FeatureConnect:    wallet.ConnectFeature(noopConnect{}),
		wallet.FeatureDisconnect: wallet.DisconnectFeature(noopDisconnect{}),
	}
}
func (h *testHandle) Accounts() []wallet.RawAccount { return nil }

type noopConnect struct{}

func (noopConnect) Connect(ctx context.Context, silent bool) ([]wallet.RawAccount, error) {
	return nil, nil
}

type noopDisconnect struct{}

func (noopDisconnect) Disconnect(ctx context.Context) error { return nil }

func handle(name string) *testHandle {
	return &testHandle{name: name, chains: []string{"solana:mainnet"}}
}

// pushSource is a DiscoverySource that can emit register/unregister events.
type pushSource struct {
	handles      []wallet.Handle
	onRegister   func(wallet.Handle)
	onUnregister func(wallet.Handle)
	unsubCalls   int
}

func (s *pushSource) List() []wallet.Handle { return s.handles }

func (s *pushSource) Subscribe(onRegister, onUnregister func(wallet.Handle)) func() {
	s.onRegister = onRegister
	s.onUnregister = onUnregister
	return func() { s.unsubCalls++ }
}

func TestRegistryNoSources(t *testing.T) {
	r := New("solana")
	defer r.Close()

	assert.False(t, r.Available())
	assert.Empty(t, r.List())
	assert.Equal(t, 0, r.Count())

	_, found := r.Lookup("Phantom")
	assert.False(t, found)
}

func TestRegistryDedupFirstWins(t *testing.T) {
	first := handle("Phantom")
	shadow := handle("Phantom")
	src1 := &StaticSource{Handles: []wallet.Handle{first, handle("Solflare")}}
	src2 := &StaticSource{Handles: []wallet.Handle{shadow, handle("Backpack")}}

	r := New("solana", src1, src2)
	defer r.Close()

	require.Equal(t, 3, r.Count())
	names := make([]string, 0, 3)
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Phantom", "Solflare", "Backpack"}, names)

	// The first occurrence backs the lookup.
	got, found := r.Lookup("Phantom")
	require.True(t, found)
	assert.Same(t, wallet.Handle(first), got)
}

func TestRegistryDedupDeterministicAcrossRefresh(t *testing.T) {
	src1 := &StaticSource{Handles: []wallet.Handle{handle("Phantom")}}
	src2 := &StaticSource{Handles: []wallet.Handle{handle("Phantom")}}

	r := New("solana", src1, src2)
	defer r.Close()

	before, _ := r.Lookup("Phantom")
	for i := 0; i < 5; i++ {
		r.Refresh()
		after, found := r.Lookup("Phantom")
		require.True(t, found)
		assert.Same(t, before, after)
	}
}

func TestRegistryIncrementalEvents(t *testing.T) {
	src := &pushSource{}
	r := New("solana", src)
	defer r.Close()

	changes := 0
	unsub := r.Subscribe(func() { changes++ })
	defer unsub()

	phantom := handle("Phantom")
	src.onRegister(phantom)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 1, changes)

	// Registering the same name again is a no-op and must not notify.
	src.onRegister(handle("Phantom"))
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, 1, changes)

	src.onUnregister(phantom)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, 2, changes)

	// Unregistering an unknown handle is silent.
	src.onUnregister(handle("Ghost"))
	assert.Equal(t, 2, changes)
}

func TestRegistrySubscribeDisposerIdempotent(t *testing.T) {
	src := &pushSource{}
	r := New("solana", src)
	defer r.Close()

	calls := 0
	unsub := r.Subscribe(func() { calls++ })
	unsub()
	unsub() // second call must not panic

	src.onRegister(handle("Phantom"))
	assert.Equal(t, 0, calls)
}

func TestRegistryUnsubscribeDuringNotify(t *testing.T) {
	src := &pushSource{}
	r := New("solana", src)
	defer r.Close()

	var unsubA func()
	aCalls, bCalls := 0, 0
	unsubA = r.Subscribe(func() {
		aCalls++
		unsubA()
	})
	r.Subscribe(func() { bCalls++ })

	src.onRegister(handle("Phantom"))
	src.onRegister(handle("Solflare"))

	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 2, bCalls)
}

func TestRegistryCloseDisposesSources(t *testing.T) {
	src := &pushSource{}
	r := New("solana", src)
	r.Close()
	assert.Equal(t, 1, src.unsubCalls)
}

func TestRegistryEmptyNameIgnored(t *testing.T) {
	src := &StaticSource{Handles: []wallet.Handle{handle("")}}
	r := New("solana", src)
	defer r.Close()
	assert.Equal(t, 0, r.Count())
}
