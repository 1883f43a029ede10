package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// MaxSubscriberBuffer bounds the channel buffer of a single subscription.
const MaxSubscriberBuffer = 4096

// Broker fans events out to subscribers. Emit never blocks: a subscriber whose buffer is full
// misses the event and the miss is counted.
type Broker struct {
	subscribers map[uint64]chan Event
	nextID      uint64
	dropped     atomic.Uint64
	mutex       sync.RWMutex
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[uint64]chan Event)}
}

// Subscribe returns the event channel and a function that cancels the subscription and
// closes the channel. buffer is clamped to [0, MaxSubscriberBuffer].
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	buffer = min(max(buffer, 0), MaxSubscriberBuffer)

	b.mutex.Lock()
	defer b.mutex.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mutex.Lock()
			defer b.mutex.Unlock()

			delete(b.subscribers, id)
			close(ch)
		})
	}
}

func (b *Broker) Emit(_ context.Context, e Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broker) Subscribers() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	return len(b.subscribers)
}
