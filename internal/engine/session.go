// ABOUTME: Session control: new sessions, switching, and hydration from history
// ABOUTME: Every switch bumps the generation so older async results become inert

package engine

import (
	"context"
	"errors"

	"github.com/2389/coven-chat/internal/chat"
)

// ErrNoSessionID is returned by SwitchTo for an empty id.
var ErrNoSessionID = errors.New("session id is required")

// Current returns the active session id.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// NewSession generates a fresh session id and makes it active, discarding the
// in-memory timeline and any loading state.
func (e *Engine) NewSession() string {
	id := e.newID()

	e.mu.Lock()
	e.activateLocked(id)
	e.mu.Unlock()

	e.logger.Info("new session", "session_id", id)
	return id
}

// SwitchTo makes id the active session and re-hydrates its timeline from the
// history source. A failed fetch leaves the cleared view in place, keeps the
// selection, and is returned as a *chat.HistoryLoadError as well as emitted
// as a notice.
func (e *Engine) SwitchTo(ctx context.Context, id string) error {
	if id == "" {
		return ErrNoSessionID
	}

	e.mu.Lock()
	e.activateLocked(id)
	gen := e.generation
	e.mu.Unlock()

	e.logger.Info("switched session", "session_id", id)

	if e.history == nil {
		return nil
	}

	rows, err := e.history.SessionRows(ctx, id)
	if err != nil {
		loadErr := &chat.HistoryLoadError{SessionID: id, Err: err}
		e.logger.Warn("history load failed", "session_id", id, "error", err)
		e.noticeIfCurrent(gen, loadErr)
		return loadErr
	}

	e.hydrate(gen, id, rows)
	return nil
}

// activateLocked must be called with mu held.
func (e *Engine) activateLocked(id string) {
	e.sessionID = id
	e.generation++
	e.setLoadingLocked(false)
	e.pending = ""
	e.timeline.Clear()
	e.emitLocked(Update{Kind: UpdateCleared})
}

// hydrate replaces the timeline with history rows, keeping any rows the
// realtime feed delivered for this session while the fetch was in flight.
func (e *Engine) hydrate(gen uint64, id string, rows []chat.Row) {
	history := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		if r.SessionID != id {
			continue
		}
		m, err := r.ToMessage()
		if err != nil {
			e.logger.Warn("skipping history row", "row_id", r.ID, "error", err)
			continue
		}
		history = append(history, m)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		e.logger.Debug("discarding history for superseded session", "session_id", id)
		return
	}

	known := make(map[string]struct{}, len(history))
	for _, m := range history {
		known[m.ID] = struct{}{}
	}
	for _, m := range e.timeline.Snapshot() {
		if _, ok := known[m.ID]; !ok {
			history = append(history, m)
		}
	}

	e.timeline.Replace(history)
	e.emitLocked(Update{Kind: UpdateReplaced})
	e.logger.Debug("session hydrated", "session_id", id, "messages", e.timeline.Len())
}
