package messaging

import (
	"log/slog"
	"sync"
)

// Handler consumes one event payload.
type Handler func(payload any)

// Bus is an in-process publish/subscribe register decoupling the connection
// manager from any number of consumers. Dispatch is synchronous and in
// registration order per event name.
type Bus struct {
	logger *slog.Logger

	mu   sync.Mutex
	seq  int
	subs map[string][]*Subscription
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[string][]*Subscription),
	}
}

// Subscription is one (event, handler) registration. Cancel releases it;
// cancelling twice is a no-op.
type Subscription struct {
	bus   *Bus
	event string
	id    int
	fn    Handler
}

// Cancel removes the registration. Safe to call multiple times, and it never
// affects other subscribers of the same event.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := b.subs[s.event]
	for i, sub := range handlers {
		if sub.id == s.id {
			b.subs[s.event] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(b.subs[s.event]) == 0 {
		delete(b.subs, s.event)
	}
}

// On registers a handler for an event name and returns its handle. The same
// handler may be registered for several names independently.
func (b *Bus) On(event string, fn Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	sub := &Subscription{bus: b, event: event, id: b.seq, fn: fn}
	b.subs[event] = append(b.subs[event], sub)
	return sub
}

// Emit invokes every handler currently registered for the event, in
// registration order. Each invocation is individually guarded so one
// panicking handler cannot starve the rest.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	handlers := make([]*Subscription, len(b.subs[event]))
	copy(handlers, b.subs[event])
	b.mu.Unlock()

	for _, sub := range handlers {
		b.invoke(event, sub, payload)
	}
}

func (b *Bus) invoke(event string, sub *Subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	sub.fn(payload)
}
