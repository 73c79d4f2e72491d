package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"fabric-qc/internal/domain/entity"
)

func event(summary string) entity.Event {
	return entity.Event{ID: uuid.New(), Status: entity.StatusDefective, Summary: summary}
}

func TestChannelSink_DropsWhenFull(t *testing.T) {
	sink := NewChannelSink(2)
	ctx := context.Background()

	require.NoError(t, sink.Publish(ctx, event("Defects: 1")))
	require.NoError(t, sink.Publish(ctx, event("Defects: 2")))
	require.NoError(t, sink.Publish(ctx, event("Defects: 3")))

	require.Equal(t, uint64(1), sink.Dropped())
	require.Equal(t, "Defects: 1", (<-sink.Events()).Summary)
	require.Equal(t, "Defects: 2", (<-sink.Events()).Summary)
}

func TestChannelSink_CancelledContext(t *testing.T) {
	sink := NewChannelSink(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, sink.Publish(ctx, event("x")), context.Canceled)
	require.Empty(t, sink.Events())
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	id1, ch1 := hub.Subscribe(1)
	_, ch2 := hub.Subscribe(1)
	require.Equal(t, 2, hub.Stats().Subscribers)

	hub.Broadcast(event("Defects: 1"))
	require.Equal(t, "Defects: 1", (<-ch1).Summary)
	require.Equal(t, "Defects: 1", (<-ch2).Summary)

	// второй подписчик не читает: его очередь переполняется
	hub.Broadcast(event("Defects: 2"))
	<-ch1
	hub.Broadcast(event("Defects: 3"))
	require.Equal(t, "Defects: 3", (<-ch1).Summary)
	require.Equal(t, uint64(1), hub.Stats().Dropped)

	hub.Unsubscribe(id1)
	_, open := <-ch1
	require.False(t, open)
	require.Equal(t, 1, hub.Stats().Subscribers)
}

func TestHub_Run(t *testing.T) {
	hub := NewHub()
	sink := NewChannelSink(4)
	_, ch := hub.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, sink.Events())
		close(done)
	}()

	require.NoError(t, sink.Publish(ctx, event("hole: 1")))
	select {
	case e := <-ch:
		require.Equal(t, "hole: 1", e.Summary)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}

	cancel()
	<-done
	_, open := <-ch
	require.False(t, open)
	require.Zero(t, hub.Stats().Subscribers)
}
