// ABOUTME: Conversation synchronization engine: one mutex-guarded state cell per client
// ABOUTME: Owns active session id, generation, loading flag, and the session timeline

package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/timeline"
)

const (
	// DefaultResponseTimeout bounds how long loading may stay true without an
	// agent reply. Config.ResponseTimeout <= 0 disables the bound.
	DefaultResponseTimeout = 2 * time.Minute

	// updateBufferSize matches the broadcaster's per-subscriber buffer.
	updateBufferSize = 64
)

// AgentClient delivers a query to the remote agent. A nil error means the
// endpoint acknowledged the request; the answer arrives later as a row.
type AgentClient interface {
	Dispatch(ctx context.Context, req chat.AgentRequest) error
}

// HistorySource reads persisted rows in creation order.
type HistorySource interface {
	SessionRows(ctx context.Context, sessionID string) ([]chat.Row, error)
	AllRows(ctx context.Context) ([]chat.Row, error)
}

// Config holds engine settings.
type Config struct {
	UserID          string
	ResponseTimeout time.Duration
	Logger          *slog.Logger
}

// UpdateKind classifies an Update.
type UpdateKind int

const (
	UpdateAppended UpdateKind = iota + 1
	UpdateReplaced
	UpdateCleared
	UpdateLoading
	UpdateNotice
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateAppended:
		return "appended"
	case UpdateReplaced:
		return "replaced"
	case UpdateCleared:
		return "cleared"
	case UpdateLoading:
		return "loading"
	case UpdateNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Update tells an observer that engine state changed. Message is set for
// UpdateAppended, Loading for UpdateLoading and Err for UpdateNotice.
//
// Local marks the optimistic echo of a message this engine sent. Missed
// counts updates dropped since the previous delivered one; when it is
// non-zero the observer should redraw from Snapshot.
type Update struct {
	Kind      UpdateKind
	SessionID string
	Message   chat.Message
	Loading   bool
	Err       error
	Local     bool
	Missed    int
}

// Engine keeps the active session's timeline consistent while requests are
// dispatched and realtime rows arrive concurrently. Every mutation happens
// under mu; network calls happen outside it and re-check generation before
// touching state.
type Engine struct {
	agent   AgentClient
	history HistorySource
	userID  string
	timeout time.Duration
	logger  *slog.Logger
	newID   func() string

	mu         sync.Mutex
	sessionID  string
	generation uint64
	loading    bool
	pending    string // request id awaiting an agent reply
	timer      *time.Timer
	closed     bool
	missed     int // updates dropped since the last delivered one

	timeline *timeline.Timeline
	updates  chan Update
}

// New creates an engine with a fresh active session.
func New(agent AgentClient, history HistorySource, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		agent:    agent,
		history:  history,
		userID:   cfg.UserID,
		timeout:  cfg.ResponseTimeout,
		logger:   logger.With("component", "engine"),
		newID:    uuid.NewString,
		timeline: timeline.New(),
		updates:  make(chan Update, updateBufferSize),
	}
	e.NewSession()
	return e
}

// Updates returns the channel of state changes. Sends never block: a full
// channel drops the update, and the next delivered one reports the gap in
// Missed.
func (e *Engine) Updates() <-chan Update {
	return e.updates
}

// Loading reports whether a dispatched request is awaiting its reply.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Snapshot returns the active timeline.
func (e *Engine) Snapshot() []chat.Message {
	return e.timeline.Snapshot()
}

// Title returns the header title for the active timeline.
func (e *Engine) Title() string {
	return chat.HeaderTitle(e.timeline.Snapshot())
}

// Close stops any pending timeout and closes the Updates channel.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.stopTimerLocked()
	e.closed = true
	close(e.updates)
}

// emitLocked must be called with mu held.
func (e *Engine) emitLocked(u Update) {
	if e.closed {
		return
	}
	u.SessionID = e.sessionID
	u.Missed = e.missed
	select {
	case e.updates <- u:
		e.missed = 0
	default:
		e.missed++
		e.logger.Debug("dropped update for slow observer",
			"kind", u.Kind.String(),
			"missed", e.missed)
	}
}

// setLoadingLocked must be called with mu held.
func (e *Engine) setLoadingLocked(loading bool) {
	if e.loading == loading {
		return
	}
	e.loading = loading
	if !loading {
		e.pending = ""
		e.stopTimerLocked()
	}
	e.emitLocked(Update{Kind: UpdateLoading, Loading: loading})
}

// stopTimerLocked must be called with mu held.
func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// noticeIfCurrent reports err unless the session changed since gen.
func (e *Engine) noticeIfCurrent(gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		e.logger.Debug("suppressing notice for superseded session", "error", err)
		return
	}
	e.emitLocked(Update{Kind: UpdateNotice, Err: err})
}
