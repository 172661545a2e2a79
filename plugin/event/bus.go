package event

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/secmc/blockparty/plugin/ports"
)

type handlerFunc func(ports.Event) Outcome

// Bus routes each event to the functions registered for its kind, in
// registration order.
type Bus struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]handlerFunc

	eventCounter  atomic.Uint64
	subCounter    atomic.Uint64
	subscriptions sync.Map // uint64 -> Observer
}

// Observer sees every dispatched event after the handlers ran.
type Observer func(id uint64, e ports.Event, out Outcome)

var _ ports.EventDispatcher = (*Bus)(nil)

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log.With("component", "event-bus"), handlers: make(map[string][]handlerFunc)}
}

// On registers fn for events of type E.
func On[E ports.Event](b *Bus, fn func(E) Outcome) {
	var zero E
	kind := zero.Kind()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], func(e ports.Event) Outcome {
		return fn(e.(E))
	})
}

// Subscribe adds an observer and returns a function that removes it.
func (b *Bus) Subscribe(o Observer) (unsubscribe func()) {
	id := b.subCounter.Add(1)
	b.subscriptions.Store(id, o)
	return func() { b.subscriptions.Delete(id) }
}

// Dispatch runs the handlers for e and merges their outcomes. A panicking
// handler is logged and contributes nothing.
func (b *Bus) Dispatch(e ports.Event) Outcome {
	id := b.eventCounter.Add(1)
	b.mu.RLock()
	handlers := b.handlers[e.Kind()]
	b.mu.RUnlock()

	var out Outcome
	for _, h := range handlers {
		res := b.call(id, e, h)
		out.Cancel = out.Cancel || res.Cancel
		out.ClearDrops = out.ClearDrops || res.ClearDrops
	}
	b.subscriptions.Range(func(_, v any) bool {
		v.(Observer)(id, e, out)
		return true
	})
	return out
}

func (b *Bus) call(id uint64, e ports.Event, h handlerFunc) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "event_id", id, "kind", e.Kind(), "error", fmt.Sprint(r))
			out = Outcome{}
		}
	}()
	return h(e)
}
