package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// DefaultSubscriberBuffer is used when NewBroker gets a non-positive buffer.
const DefaultSubscriberBuffer = 64

// Broker fans events out to in-process subscribers. A subscriber whose buffer is full misses
// the event rather than blocking the publisher.
type Broker struct {
	buffer    int
	onDropped func()

	mu   sync.RWMutex
	subs map[string]map[chan domain.Event]struct{}
}

func NewBroker(buffer int, onDropped func()) *Broker {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if onDropped == nil {
		onDropped = func() {}
	}
	return &Broker{
		buffer:    buffer,
		onDropped: onDropped,
		subs:      make(map[string]map[chan domain.Event]struct{}),
	}
}

func (b *Broker) Publish(_ context.Context, sessionID string, event domain.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- event:
		default:
			b.onDropped()
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	ch := make(chan domain.Event, b.buffer)

	b.mu.Lock()
	set, ok := b.subs[sessionID]
	if !ok {
		set = make(map[chan domain.Event]struct{})
		b.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subs, sessionID)
				}
			}
			close(ch)
			b.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, cancel)
	return ch, func() {
		stop()
		cancel()
	}, nil
}

// Subscribers reports how many channels listen on a session.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
