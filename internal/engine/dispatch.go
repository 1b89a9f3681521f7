// ABOUTME: Request dispatch under the active session with loading-state tracking
// ABOUTME: One outstanding request per session; failures and timeouts clear loading

package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/chat"
)

// Send dispatches content to the agent under the active session.
//
// The user message is appended to the timeline immediately with its id set
// to the request id; the gateway persists the confirmed row under the same
// id, so the realtime echo is recognized as a duplicate. Loading turns true
// before the call and stays true until an agent row for the session arrives,
// the call fails, or the response timeout fires.
//
// Send blocks only for the acknowledgement. On failure the returned error is
// a *chat.DispatchError and is also emitted as a notice. The optimistic
// message stays in the timeline after a failure even though the gateway
// never stored it; the next hydration of the session drops it.
func (e *Engine) Send(ctx context.Context, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", chat.ErrEmptyContent
	}

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()
		return "", chat.ErrBusy
	}

	requestID := e.newID()
	req := chat.AgentRequest{
		Query:     content,
		UserID:    e.userID,
		RequestID: requestID,
		SessionID: e.sessionID,
	}
	gen := e.generation

	msg := chat.Message{
		ID:        requestID,
		Role:      chat.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if e.timeline.Append(msg) {
		e.emitLocked(Update{Kind: UpdateAppended, Message: msg, Local: true})
	}

	e.setLoadingLocked(true)
	e.pending = requestID
	if e.timeout > 0 {
		e.timer = time.AfterFunc(e.timeout, func() { e.expire(gen, requestID) })
	}
	e.mu.Unlock()

	e.logger.Debug("dispatching request",
		"session_id", req.SessionID,
		"request_id", requestID)

	if err := e.agent.Dispatch(ctx, req); err != nil {
		var dispatchErr *chat.DispatchError
		if !errors.As(err, &dispatchErr) {
			dispatchErr = &chat.DispatchError{RequestID: requestID, Err: err}
		}
		e.fail(gen, requestID, dispatchErr)
		return requestID, dispatchErr
	}

	return requestID, nil
}

// fail clears loading for requestID if it is still the pending request of
// the same session generation, and reports err.
func (e *Engine) fail(gen uint64, requestID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		e.logger.Debug("ignoring dispatch failure for superseded session",
			"request_id", requestID,
			"error", err)
		return
	}

	e.logger.Warn("dispatch failed", "request_id", requestID, "error", err)
	if e.pending == requestID {
		e.setLoadingLocked(false)
	}
	e.emitLocked(Update{Kind: UpdateNotice, Err: err})
}

// expire fires when no agent reply arrived within the response timeout.
func (e *Engine) expire(gen uint64, requestID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || e.pending != requestID {
		return
	}

	e.logger.Warn("agent response timed out",
		"request_id", requestID,
		"timeout", e.timeout)
	e.timer = nil
	e.setLoadingLocked(false)
	e.emitLocked(Update{Kind: UpdateNotice, Err: chat.ErrResponseTimeout})
}
