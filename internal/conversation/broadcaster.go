// ABOUTME: In-memory fan-out broadcaster for persisted message rows
// ABOUTME: Publishes each new row to subscribers of its session and to feed-wide subscribers

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/coven-chat/internal/chat"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// AllSessions subscribes to rows of every session. The realtime SSE feed
	// uses it; clients filter by their active session.
	AllSessions = "*"
)

// EventBroadcaster provides in-memory pub/sub for persisted rows.
// Subscribers register for a session id (or AllSessions) and receive rows
// as they are persisted.
type EventBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan chat.Row // key -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewEventBroadcaster creates a broadcaster. Pass nil logger for default.
func NewEventBroadcaster(logger *slog.Logger) *EventBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBroadcaster{
		subscribers: make(map[string]map[string]chan chat.Row),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for rows of the given session id, or of
// every session when key is AllSessions. Returns a channel that receives rows
// and a subscription ID for later unsubscription. The subscription is
// automatically cleaned up when ctx is cancelled.
func (b *EventBroadcaster) Subscribe(ctx context.Context, key string) (<-chan chat.Row, string) {
	subID := uuid.New().String()
	ch := make(chan chat.Row, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]chan chat.Row)
	}
	b.subscribers[key][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "key", key, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(key, subID)
	}()

	return ch, subID
}

// Publish sends row to subscribers of its session and to AllSessions
// subscribers. It never blocks: a subscriber whose channel is full is
// removed and its channel closed after the rows already buffered, so it
// sees an end of stream rather than a gap.
func (b *EventBroadcaster) Publish(row chat.Row) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range []string{row.SessionID, AllSessions} {
		for subID, ch := range b.subscribers[key] {
			select {
			case ch <- row:
			default:
				b.logger.Warn("disconnecting slow subscriber",
					"key", key,
					"sub_id", subID,
					"row_id", row.ID)
				b.removeLocked(key, subID)
			}
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *EventBroadcaster) Unsubscribe(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.removeLocked(key, subID) {
		b.logger.Debug("subscriber removed", "key", key, "sub_id", subID)
	}
}

// removeLocked must be called with mu held. It reports whether the
// subscription existed.
func (b *EventBroadcaster) removeLocked(key, subID string) bool {
	subs, ok := b.subscribers[key]
	if !ok {
		return false
	}

	ch, exists := subs[subID]
	if !exists {
		return false
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}
	return true
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *EventBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
