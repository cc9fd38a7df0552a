package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event
	buffer      int
}

func NewBus() *InMemoryBus {
	return NewBusWithBuffer(100)
}

func NewBusWithBuffer(buffer int) *InMemoryBus {
	if buffer <= 0 {
		buffer = 1
	}
	return &InMemoryBus{
		subscribers: make(map[string]chan Event),
		buffer:      buffer,
	}
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (b *InMemoryBus) Publish(e Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			slog.Warn("event dropped for slow subscriber", "subscriber", id, "type", string(e.Type))
		}
	}
}

func (b *InMemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, b.buffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if ch, exists := b.subscribers[id]; exists {
				close(ch)
				delete(b.subscribers, id)
			}
		})
	}

	return ch, unsubscribe
}
