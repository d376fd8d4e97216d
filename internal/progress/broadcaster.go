package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Broadcaster publishes snapshots from a single writer to any number of
// readers. Snapshot never blocks; subscribers always hold the newest value
// and may miss intermediate ones.
type Broadcaster struct {
	cur atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs map[int]chan Snapshot
	next int
	now  func() time.Time
}

// NewBroadcaster starts in ready with no message.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{subs: make(map[int]chan Snapshot), now: time.Now}
	s := Ready("")
	s.UpdatedAt = b.now()
	b.cur.Store(&s)
	return b
}

// Snapshot returns a copy of the latest published value.
func (b *Broadcaster) Snapshot() Snapshot { return *b.cur.Load() }

// Publish replaces the current snapshot and notifies subscribers.
func (b *Broadcaster) Publish(s Snapshot) {
	s.UpdatedAt = b.now()
	stored := s
	b.cur.Store(&stored)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		offer(ch, s)
	}
}

// Update applies fn to a copy of the current snapshot and publishes it.
// Only the single writer may call Update.
func (b *Broadcaster) Update(fn func(*Snapshot)) Snapshot {
	s := b.Snapshot()
	fn(&s)
	b.Publish(s)
	return b.Snapshot()
}

// Subscribe returns a channel that receives the current snapshot followed by
// every later one the reader keeps up with. Call cancel to stop delivery.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	offer(ch, b.Snapshot())
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports how many readers are attached.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// offer delivers s without blocking, evicting the oldest buffered value when full.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
