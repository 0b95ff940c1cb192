package events

import (
	"sync"
	"time"

	"github.com/solwire/solwire/pkg/logger"
	"go.uber.org/zap"
)

// Listener receives lifecycle events.
type Listener func(Event)

// Bus is a fire-and-forget publish/subscribe channel. Dispatch is
// synchronous; a listener that panics is recovered and isolated so it
// cannot break dispatch to remaining listeners or the emitting code path.
type Bus struct {
	mu        sync.Mutex
	listeners map[int]Listener
	nextID    int
	emitted   uint64
	logger    *zap.Logger
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[int]Listener),
		logger:    logger.Get().With(zap.String("component", "event_bus")),
	}
}

// On registers a listener and returns a disposer. The disposer is
// idempotent.
func (b *Bus) On(listener Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	return func() { b.off(id) }
}

func (b *Bus) off(id int) {
	b.mu.Lock()
	delete(b.listeners, id)
	b.mu.Unlock()
}

// OffAll removes every listener.
func (b *Bus) OffAll() {
	b.mu.Lock()
	b.listeners = make(map[int]Listener)
	b.mu.Unlock()
}

// Emit dispatches the event synchronously to all listeners. The timestamp
// is stamped here when unset.
func (b *Bus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.emitted++
	targets := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		targets = append(targets, l)
	}
	b.mu.Unlock()

	for _, l := range targets {
		b.dispatch(l, event)
	}
}

// dispatch delivers to one listener, isolating panics.
func (b *Bus) dispatch(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				zap.String("event", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	l(event)
}

// Emitted returns the total number of events emitted.
func (b *Bus) Emitted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.emitted
}
