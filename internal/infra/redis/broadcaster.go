package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// Broadcaster fans session events out through Redis pub/sub so every instance serving a
// session's clients receives them. One channel per session: quiz:session:{id}:events.
type Broadcaster struct {
	client    *redis.Client
	buffer    int
	onDropped func()
}

func NewBroadcaster(client *redis.Client, buffer int, onDropped func()) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	if onDropped == nil {
		onDropped = func() {}
	}
	return &Broadcaster{client: client, buffer: buffer, onDropped: onDropped}
}

func (b *Broadcaster) Publish(ctx context.Context, sessionID string, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, channel(sessionID), payload).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so events published after it
// returns are delivered.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Event, func(), error) {
	ps := b.client.Subscribe(ctx, channel(sessionID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", sessionID, err)
	}

	out := make(chan domain.Event, b.buffer)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		for msg := range msgs {
			var ev domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			default:
				b.onDropped()
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = ps.Close() })
	}
	stop := context.AfterFunc(ctx, cancel)
	return out, func() {
		stop()
		cancel()
	}, nil
}

func channel(sessionID string) string {
	return "quiz:session:" + sessionID + ":events"
}
