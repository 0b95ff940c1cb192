package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusEmit(t *testing.T) {
	b := NewBus()

	var got []Event
	unsub := b.On(func(e Event) { got = append(got, e) })
	defer unsub()

	b.Emit(Event{Type: TypeWalletConnected, Wallet: "Phantom", Account: "addr1"})
	b.Emit(Event{Type: TypeClusterChanged, Cluster: "solana:devnet", PreviousCluster: "solana:mainnet"})

	require.Len(t, got, 2)
	assert.Equal(t, TypeWalletConnected, got[0].Type)
	assert.Equal(t, "Phantom", got[0].Wallet)
	assert.False(t, got[0].Timestamp.IsZero(), "timestamp must be stamped on emit")
	assert.Equal(t, "solana:mainnet", got[1].PreviousCluster)
	assert.Equal(t, uint64(2), b.Emitted())
}

func TestBusListenerPanicIsolated(t *testing.T) {
	b := NewBus()

	survived := 0
	b.On(func(Event) { panic("listener bug") })
	b.On(func(Event) { survived++ })

	assert.NotPanics(t, func() {
		b.Emit(Event{Type: TypeError})
	})
	assert.Equal(t, 1, survived)
}

func TestBusDisposerIdempotent(t *testing.T) {
	b := NewBus()

	calls := 0
	unsub := b.On(func(Event) { calls++ })
	unsub()
	unsub() // must not panic or affect other listeners

	other := 0
	b.On(func(Event) { other++ })

	b.Emit(Event{Type: TypeWalletsDetected, Count: 3})
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, other)
}

func TestBusOffAll(t *testing.T) {
	b := NewBus()

	calls := 0
	b.On(func(Event) { calls++ })
	b.On(func(Event) { calls++ })
	b.OffAll()

	b.Emit(Event{Type: TypeWalletDisconnected})
	assert.Equal(t, 0, calls)

	// The bus remains usable after OffAll.
	b.On(func(Event) { calls++ })
	b.Emit(Event{Type: TypeWalletDisconnected})
	assert.Equal(t, 1, calls)
}

func TestBusUnsubscribeDuringDispatch(t *testing.T) {
	b := NewBus()

	var unsubA func()
	aCalls, bCalls := 0, 0
	unsubA = b.On(func(Event) {
		aCalls++
		unsubA()
	})
	b.On(func(Event) { bCalls++ })

	b.Emit(Event{Type: TypeConnecting})
	b.Emit(Event{Type: TypeConnecting})

	assert.Equal(t, 1, aCalls)
	assert.Equal(t, 2, bCalls)
}
