// ABOUTME: Realtime event routing into the active session's timeline
// ABOUTME: Drops rows for other sessions and duplicate ids; agent rows end loading

package engine

import (
	"context"

	"github.com/2389/coven-chat/internal/chat"
)

// Deliver applies one realtime row. It returns true if the row was appended.
//
// Rows tagged with a session other than the active one are stale and are
// dropped without error. Rows whose id is already in the timeline (duplicate
// delivery, or the confirmation of an optimistic echo) are dropped too. An
// accepted agent row is the only success path out of loading.
func (e *Engine) Deliver(row chat.Row) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if row.SessionID != e.sessionID {
		e.logger.Debug("dropping stale event",
			"row_id", row.ID,
			"row_session_id", row.SessionID)
		return false
	}

	msg, err := row.ToMessage()
	if err != nil {
		e.logger.Warn("dropping malformed event", "row_id", row.ID, "error", err)
		return false
	}

	if !e.timeline.Append(msg) {
		e.logger.Debug("dropping duplicate event", "row_id", row.ID)
		return false
	}
	e.emitLocked(Update{Kind: UpdateAppended, Message: msg})

	if msg.Role == chat.RoleAgent {
		e.setLoadingLocked(false)
	}
	return true
}

// Run routes rows from feed until it is closed or ctx is done.
func (e *Engine) Run(ctx context.Context, feed <-chan chat.Row) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case row, ok := <-feed:
			if !ok {
				return nil
			}
			e.Deliver(row)
		}
	}
}
