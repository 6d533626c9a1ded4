package monitor

import (
	"sync"
	"sync/atomic"
)

// DefaultSubscriptionBuffer is used when Subscribe is given a non-positive
// buffer size.
const DefaultSubscriptionBuffer = 64

type eventHub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	dropped atomic.Int64
}

// publish delivers ev to every subscriber without blocking. Events for a
// subscriber whose buffer is full are dropped and counted.
func (h *eventHub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscription is a registered event listener.
type Subscription struct {
	// C receives monitor events. It is closed by Close.
	C <-chan Event

	id   uint64
	hub  *eventHub
	once sync.Once
}

// Close unregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		if ch, ok := s.hub.subs[s.id]; ok {
			delete(s.hub.subs, s.id)
			close(ch)
		}
	})
}

// Subscribe registers a listener for health and config events.
func (m *Monitor) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	ch := make(chan Event, buffer)

	m.events.mu.Lock()
	m.events.nextID++
	id := m.events.nextID
	m.events.subs[id] = ch
	m.events.mu.Unlock()

	return &Subscription{C: ch, id: id, hub: &m.events}
}

// DroppedEvents returns the number of events discarded because a
// subscriber was not keeping up.
func (m *Monitor) DroppedEvents() int64 {
	return m.events.dropped.Load()
}
