package vfs

import "sync"

// eventBroadcastCapacity is the bounded buffer size for each subscriber
// channel; producers never block past this, consumers that fall behind lose
// events and are expected to reconcile by walking the VFS.
const eventBroadcastCapacity = 100

// broadcaster is a simple non-blocking fan-out over Event, modeled on the
// teacher's worker-pool channel idioms but applied to pub/sub instead of
// task distribution.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and an unsubscribe function.
func (b *broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, eventBroadcastCapacity)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Emit sends ev to every live subscriber, dropping it for any subscriber
// whose buffer is full rather than blocking the emitting goroutine.
func (b *broadcaster) Emit(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
