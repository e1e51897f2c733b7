package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestBrokerDeliversInOrder(t *testing.T) {
	b := NewBroker(8, nil)
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)
	defer cancel()

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, b.Publish(ctx, "s1", domain.Event{Type: domain.EventParticipantJoined, Seq: seq}))
	}
	require.NoError(t, b.Publish(ctx, "other", domain.Event{Seq: 99}))

	for want := uint64(1); want <= 3; want++ {
		select {
		case ev := <-ch:
			require.Equal(t, want, ev.Seq)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestBrokerDropsWhenBufferFull(t *testing.T) {
	dropped := 0
	b := NewBroker(1, func() { dropped++ })
	ctx := context.Background()

	ch, cancel, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(ctx, "s1", domain.Event{Seq: 1}))
	require.NoError(t, b.Publish(ctx, "s1", domain.Event{Seq: 2}))
	require.Equal(t, 1, dropped)
	require.Equal(t, uint64(1), (<-ch).Seq)
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	b := NewBroker(0, nil)
	ctx, stop := context.WithCancel(context.Background())

	ch, cancel, err := b.Subscribe(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, b.Subscribers("s1"))

	stop()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
	require.Equal(t, 0, b.Subscribers("s1"))
	cancel()
}
