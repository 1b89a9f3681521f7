// ABOUTME: Append-only ordered message timeline for the active session
// ABOUTME: Rejects duplicate message ids and hands readers consistent copies

package timeline

import (
	"sync"

	"github.com/2389/coven-chat/internal/chat"
)

// Timeline holds the in-memory messages of one session in arrival order.
// All methods are safe for concurrent use; readers never observe a
// partially applied Append or Replace.
type Timeline struct {
	mu   sync.RWMutex
	msgs []chat.Message
	ids  map[string]struct{}
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{ids: make(map[string]struct{})}
}

// Append adds msg to the tail. It returns false and leaves the timeline
// unchanged if a message with the same id is already present.
func (t *Timeline) Append(msg chat.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, dup := t.ids[msg.ID]; dup {
		return false
	}
	t.ids[msg.ID] = struct{}{}
	t.msgs = append(t.msgs, msg)
	return true
}

// Replace swaps the whole timeline for msgs. Later occurrences of a repeated
// id are dropped so hydration from an at-least-once source stays clean.
func (t *Timeline) Replace(msgs []chat.Message) {
	next := make([]chat.Message, 0, len(msgs))
	ids := make(map[string]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := ids[m.ID]; dup {
			continue
		}
		ids[m.ID] = struct{}{}
		next = append(next, m)
	}

	t.mu.Lock()
	t.msgs = next
	t.ids = ids
	t.mu.Unlock()
}

// Clear empties the timeline.
func (t *Timeline) Clear() {
	t.mu.Lock()
	t.msgs = nil
	t.ids = make(map[string]struct{})
	t.mu.Unlock()
}

// Snapshot returns a copy of the current messages in order.
func (t *Timeline) Snapshot() []chat.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]chat.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Contains reports whether a message with id is present.
func (t *Timeline) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ids[id]
	return ok
}
