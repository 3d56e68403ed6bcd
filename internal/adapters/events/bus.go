package events

import (
	"context"
	"sync"
)

// Bus fans encoded snapshots out to in-process subscribers such as SSE streams.
// Delivery is non-blocking: a subscriber that falls behind misses snapshots.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan []byte
	closed bool
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 8
	}
	return &Bus{buffer: buffer}
}

// Publish implements ports.SnapshotPublisher.
func (b *Bus) Publish(_ context.Context, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, ch := range b.subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Bus) Subscribe() <-chan []byte {
	ch := make(chan []byte, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
