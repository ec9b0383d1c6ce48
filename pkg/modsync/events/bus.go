package events

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultBuffer is the channel capacity of a Bus subscription.
const DefaultBuffer = 100

// Subscription receives events on a buffered channel. Events that arrive
// while the channel is full are dropped.
type Subscription struct {
	ID     string
	Kinds  []Kind
	Events chan Event
}

func (s *Subscription) wants(k Kind) bool {
	if len(s.Kinds) == 0 {
		return true
	}
	for _, want := range s.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Bus is a Sink that fans events out to any number of subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	handlers    map[string]func(Event)
	closed      bool
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscription),
		handlers:    make(map[string]func(Event)),
	}
}

// Subscribe creates a channel subscription. With no kinds given, every
// event is delivered. Returns nil once the bus is closed.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscription{
		ID:     uuid.New().String(),
		Kinds:  kinds,
		Events: make(chan Event, DefaultBuffer),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// SubscribeFunc registers fn to be called synchronously for every event and
// returns its subscription id. Returns "" once the bus is closed.
func (b *Bus) SubscribeFunc(fn func(Event)) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || fn == nil {
		return ""
	}

	id := uuid.New().String()
	b.handlers[id] = fn
	return id
}

// Unsubscribe removes a subscription of either kind.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
	delete(b.handlers, id)
}

// Publish delivers ev to every subscriber without blocking on channel
// subscribers. Handlers run on the caller's goroutine; a panicking handler
// does not stop delivery to the others.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	for _, sub := range b.subscribers {
		if !sub.wants(ev.Kind) {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			// Channel full, event dropped
		}
	}

	handlers := make([]func(Event), 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		callHandler(fn, ev)
	}
}

func callHandler(fn func(Event), ev Event) {
	defer func() { _ = recover() }()
	fn(ev)
}

// Close closes the bus and all channel subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscription)
	b.handlers = make(map[string]func(Event))
}

// SubscriberCount returns the number of active subscriptions of both kinds.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers) + len(b.handlers)
}

var _ Sink = (*Bus)(nil)
