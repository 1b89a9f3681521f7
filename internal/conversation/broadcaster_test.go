// ABOUTME: Tests for EventBroadcaster fan-out pub/sub system
// ABOUTME: Covers subscribe, publish, feed-wide subscribers, unsubscribe, cancellation, concurrency

package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/chat"
)

func makeRow(id, sessionID string) chat.Row {
	return chat.Row{
		ID:        id,
		SessionID: sessionID,
		Message:   chat.Payload{Type: chat.TypeHuman, Content: "hello from " + id},
		CreatedAt: time.Now(),
	}
}

func TestBroadcaster_SingleSubscriberReceivesRow(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "session-1")

	b.Publish(makeRow("row-1", "session-1"))

	select {
	case received := <-ch:
		assert.Equal(t, "row-1", received.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for row")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameRow(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx, "session-1")
	ch2, _ := b.Subscribe(ctx, "session-1")
	ch3, _ := b.Subscribe(ctx, AllSessions)

	b.Publish(makeRow("row-2", "session-1"))

	for i, ch := range []<-chan chat.Row{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, "row-2", received.ID, "subscriber %d got wrong row", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_SessionsAreIsolated(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx, "session-1")
	ch2, _ := b.Subscribe(ctx, "session-2")

	b.Publish(makeRow("row-3", "session-1"))

	select {
	case received := <-ch1:
		assert.Equal(t, "row-3", received.ID)
	case <-time.After(time.Second):
		t.Fatal("session-1 subscriber timed out")
	}

	select {
	case <-ch2:
		t.Fatal("session-2 subscriber should not receive session-1 rows")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcaster_AllSessionsSeesEverySession(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	all, _ := b.Subscribe(t.Context(), AllSessions)

	b.Publish(makeRow("a", "session-1"))
	b.Publish(makeRow("b", "session-2"))

	var ids []string
	for range 2 {
		select {
		case row := <-all:
			ids = append(ids, row.ID)
		case <-time.After(time.Second):
			t.Fatal("feed subscriber timed out")
		}
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestBroadcaster_SlowConsumerIsDisconnected(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	slow, _ := b.Subscribe(ctx, AllSessions)
	fast, _ := b.Subscribe(ctx, "session-1")

	var fastIDs []string
	for i := range subscriberBufferSize + 10 {
		b.Publish(makeRow(fmt.Sprintf("overflow-%d", i), "session-1"))
		fastIDs = append(fastIDs, (<-fast).ID)
	}
	assert.Len(t, fastIDs, subscriberBufferSize+10, "a subscriber that keeps up sees every row")

	// The slow subscriber gets exactly the rows buffered before the overflow,
	// in order, and then a closed channel instead of a gap.
	var slowIDs []string
	for row := range slow {
		slowIDs = append(slowIDs, row.ID)
	}
	require.Len(t, slowIDs, subscriberBufferSize)
	assert.Equal(t, fastIDs[:subscriberBufferSize], slowIDs)

	b.mu.RLock()
	_, keyExists := b.subscribers[AllSessions]
	b.mu.RUnlock()
	assert.False(t, keyExists, "overflowed subscription is removed")
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, subID := b.Subscribe(ctx, "session-1")

	b.mu.RLock()
	_, exists := b.subscribers["session-1"][subID]
	b.mu.RUnlock()
	assert.True(t, exists, "subscription should exist before cancel")

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}

	b.mu.RLock()
	_, keyExists := b.subscribers["session-1"]
	b.mu.RUnlock()
	assert.False(t, keyExists, "empty key should be removed")
}

func TestBroadcaster_ManualUnsubscribe(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), "session-1")
	b.Unsubscribe("session-1", subID)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Publishing and a second unsubscribe should not panic
	b.Publish(makeRow("after-unsub", "session-1"))
	b.Unsubscribe("session-1", subID)
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := NewEventBroadcaster(nil)

	ch1, _ := b.Subscribe(t.Context(), "session-1")
	ch2, _ := b.Subscribe(t.Context(), AllSessions)

	b.Close()

	for i, ch := range []<-chan chat.Row{ch1, ch2} {
		select {
		case _, ok := <-ch:
			assert.False(t, ok, "channel %d should be closed after Close()", i)
		case <-time.After(time.Second):
			t.Fatalf("channel %d not closed after Close()", i)
		}
	}

	late, _ := b.Subscribe(t.Context(), "session-1")
	_, ok := <-late
	assert.False(t, ok, "subscribing after Close should yield a closed channel")
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	for range 10 {
		wg.Go(func() {
			ch, _ := b.Subscribe(ctx, "session-concurrent")
			for range 5 {
				select {
				case <-ch:
				case <-time.After(500 * time.Millisecond):
					return
				}
			}
		})
	}

	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish(makeRow("concurrent", "session-concurrent"))
			}
		})
	}

	wg.Wait()
}

func TestBroadcaster_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	_, id1 := b.Subscribe(ctx, "session-1")
	_, id2 := b.Subscribe(ctx, "session-1")
	_, id3 := b.Subscribe(ctx, "session-2")

	require.NotEqual(t, id1, id2)
	require.NotEqual(t, id1, id3)
	require.NotEqual(t, id2, id3)
}

func TestBroadcaster_PublishWithNoSubscribers(t *testing.T) {
	b := NewEventBroadcaster(nil)
	defer b.Close()

	b.Publish(makeRow("nowhere", "nobody-listening"))
}
