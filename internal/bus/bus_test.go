package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lila-deepq/deepq/internal/model"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := New(4)
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(Event{Kind: JobAcquired, JobID: "job-1", GameID: "game-1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	evt, ok := sub.Receive(ctx)
	require.True(t, ok)
	require.Equal(t, JobAcquired, evt.Kind)
	require.Equal(t, model.JobId("job-1"), evt.JobID)
}

func TestBus_PublishWithNoSubscribersIsDiscarded(t *testing.T) {
	b := New(4)
	defer b.Close()

	// No subscriber attached - this must not block or panic.
	b.Publish(Event{Kind: JobCompleted, JobID: "job-2"})
}

func TestBus_SlowSubscriberDropsOldestOnOverflow(t *testing.T) {
	b := New(2)
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(Event{Kind: JobAcquired, JobID: "1"})
	b.Publish(Event{Kind: JobAcquired, JobID: "2"})
	b.Publish(Event{Kind: JobAcquired, JobID: "3"})

	require.Equal(t, uint64(1), sub.Dropped())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	first, ok := sub.Receive(ctx)
	require.True(t, ok)
	require.Equal(t, model.JobId("2"), first.JobID)

	second, ok := sub.Receive(ctx)
	require.True(t, ok)
	require.Equal(t, model.JobId("3"), second.JobID)
}

func TestBus_CloseUnblocksReceive(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()

	done := make(chan bool, 1)

	go func() {
		_, ok := sub.Receive(context.Background())
		done <- ok
	}()

	b.Close()

	select {
	case ok := <-done:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock after Close")
	}
}

func TestBus_ReceiveUnblocksOnContextCancel(t *testing.T) {
	b := New(4)
	defer b.Close()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := sub.Receive(ctx)
	require.False(t, ok)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := New(4)
	defer b.Close()

	sub := b.Subscribe()
	b.Unsubscribe(sub)

	b.Publish(Event{Kind: JobAborted, JobID: "job-x"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok := sub.Receive(ctx)
	require.False(t, ok, "unsubscribed subscriber should not receive events")
}
