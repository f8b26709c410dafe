package session

import (
	"sort"
	"sync"
)

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is a session change notification. Seq increases strictly for every
// event emitted by the same Broadcaster.
type Event struct {
	Type    EventType
	Session *Session // nil for EventSignedOut
	Seq     uint64
}

// Broadcaster fans session events out to listeners in emit order.
type Broadcaster struct {
	emitMu    sync.Mutex // serializes Emit so delivery order == emit order
	mu        sync.Mutex
	seq       uint64
	nextID    int
	listeners map[int]func(Event)
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[int]func(Event))}
}

// Subscribe registers fn. The returned function is idempotent.
func (b *Broadcaster) Subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Emit assigns the next sequence number and delivers the event to every
// listener registered at the time of the call, in registration order.
// Listeners must not call Emit.
func (b *Broadcaster) Emit(eventType EventType, s *Session) Event {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	b.seq++
	ev := Event{Type: eventType, Session: s.Clone(), Seq: b.seq}
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
	return ev
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
