// Package bus is the in-process fan-out event bus shared by capabilities.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/sipeed/feishuclaw/pkg/logger"
)

// DefaultCapacity is the per-subscriber queue size used when New gets a
// non-positive capacity.
const DefaultCapacity = 256

// Bus delivers every published event to each subscriber registered at the
// time of publication. Publish never blocks: a subscriber whose queue is
// full misses that event. There is no history; late subscribers see only
// later events. Share the *Bus pointer, never copy the struct.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*Subscription
	nextID   uint64
	capacity int
	closed   bool
}

// Subscription is one tap on the bus.
type Subscription struct {
	Name string

	id      uint64
	ch      chan Event
	bus     *Bus
	dropped atomic.Uint64
	once    sync.Once
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		subs:     make(map[uint64]*Subscription),
		capacity: capacity,
	}
}

// Subscribe registers a named tap. On a closed bus the returned
// subscription's channel is already closed.
func (b *Bus) Subscribe(name string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{Name: name, ch: make(chan Event, b.capacity), bus: b}
	if b.closed {
		close(sub.ch)
		sub.once.Do(func() {})
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish fans ev out to all current subscribers and returns how many
// received it.
func (b *Bus) Publish(ev Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}

	delivered := 0
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			if sub.dropped.Add(1) == 1 {
				logger.WarnCF("bus", "Subscriber queue full, dropping events", map[string]interface{}{
					"subscriber": sub.Name,
					"event":      ev.Kind(),
				})
			}
		}
	}
	return delivered
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription channel. Later publishes are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		sub.once.Do(func() { close(sub.ch) })
		delete(b.subs, id)
	}
}

// C returns the receive side of the subscription.
func (s *Subscription) C() <-chan Event { return s.ch }

// Dropped returns how many events were lost because the queue was full.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription and closes its channel. Safe to call
// more than once and concurrently with Bus.Close.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.once.Do(func() {
		delete(s.bus.subs, s.id)
		close(s.ch)
	})
}
