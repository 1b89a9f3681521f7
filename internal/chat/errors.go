// ABOUTME: Error taxonomy for the synchronization engine and its collaborators
// ABOUTME: Every error here is non-fatal; callers surface them as notices

package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when a query is blank after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrBusy is returned when a request is already outstanding for the session.
	ErrBusy = errors.New("a request is already in flight")

	// ErrResponseTimeout is reported when the agent never answers a dispatched request.
	ErrResponseTimeout = errors.New("timed out waiting for agent response")

	// ErrUnknownMessageType is returned for rows whose type is neither human nor ai.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// DispatchError reports that the agent endpoint rejected a request or could
// not be reached. StatusCode is zero for network errors.
type DispatchError struct {
	RequestID  string
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("dispatch %s failed: status %d", e.RequestID, e.StatusCode)
	}
	return fmt.Sprintf("dispatch %s failed: %v", e.RequestID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// HistoryLoadError reports a failed history fetch. SessionID is empty when the
// fetch covered all sessions (indexing).
type HistoryLoadError struct {
	SessionID string
	Err       error
}

func (e *HistoryLoadError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("loading conversation index: %v", e.Err)
	}
	return fmt.Sprintf("loading history for session %s: %v", e.SessionID, e.Err)
}

func (e *HistoryLoadError) Unwrap() error {
	return e.Err
}
