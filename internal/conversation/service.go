// ABOUTME: Conversation service: records the user's query, then runs the agent and records its reply
// ABOUTME: History is the source of truth; clients learn about both rows only through the store

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-chat/internal/chat"
)

const (
	// DefaultReplyTimeout bounds a single agent run.
	DefaultReplyTimeout = 90 * time.Second

	// saveTimeout bounds persisting a row from a background goroutine.
	saveTimeout = 5 * time.Second
)

var (
	// ErrInvalidRequest is returned when a request lacks a query, session id or request id.
	ErrInvalidRequest = errors.New("invalid agent request")

	// ErrDuplicateRequest is returned when a request id was already recorded.
	ErrDuplicateRequest = errors.New("duplicate request")
)

// RowStore defines what the service needs from storage
type RowStore interface {
	SaveRow(ctx context.Context, row *chat.Row) (bool, error)
	ListSession(ctx context.Context, sessionID string) ([]chat.Row, error)
}

// Responder produces the agent's reply to a query. history holds the
// session's rows up to and including the query itself.
type Responder interface {
	Respond(ctx context.Context, req chat.AgentRequest, history []chat.Row) (string, error)
}

// Service is the central conversation layer that ensures the user's query is
// persisted before the agent runs, and that every run ends with an ai row.
type Service struct {
	store        RowStore
	responder    Responder
	replyTimeout time.Duration
	logger       *slog.Logger
	newID        func() string

	wg sync.WaitGroup
}

// New creates a new conversation service. A replyTimeout <= 0 uses
// DefaultReplyTimeout.
func New(store RowStore, responder Responder, replyTimeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if replyTimeout <= 0 {
		replyTimeout = DefaultReplyTimeout
	}
	return &Service{
		store:        store,
		responder:    responder,
		replyTimeout: replyTimeout,
		logger:       logger.With("component", "conversation"),
		newID:        uuid.NewString,
	}
}

// Submit records the query as a human row keyed by its request id, then
// runs the agent in the background.
//
// Key principle: Record first, then act. A nil return means the query is
// durable and the reply will follow as an ai row in the same session, even
// if the agent fails. A request id that was already recorded returns
// ErrDuplicateRequest and does not run the agent again.
func (s *Service) Submit(ctx context.Context, req chat.AgentRequest) error {
	if strings.TrimSpace(req.Query) == "" || req.SessionID == "" || req.RequestID == "" {
		return ErrInvalidRequest
	}

	userRow := &chat.Row{
		ID:        req.RequestID,
		SessionID: req.SessionID,
		Message:   chat.Payload{Type: chat.TypeHuman, Content: req.Query},
		CreatedAt: time.Now().UTC(),
	}
	inserted, err := s.store.SaveRow(ctx, userRow)
	if err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	if !inserted {
		s.logger.Info("duplicate request ignored",
			"request_id", req.RequestID,
			"session_id", req.SessionID)
		return ErrDuplicateRequest
	}

	s.logger.Debug("query recorded",
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"user_id", req.UserID)

	s.wg.Go(func() { s.respond(req) })
	return nil
}

// Wait blocks until every background agent run has recorded its reply.
func (s *Service) Wait() {
	s.wg.Wait()
}

// respond runs the agent and records its reply. Failures are recorded as a
// reply too, so the session never waits forever.
func (s *Service) respond(req chat.AgentRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.replyTimeout)
	defer cancel()

	history, err := s.store.ListSession(ctx, req.SessionID)
	if err != nil {
		s.logger.Warn("failed to load session history for agent",
			"session_id", req.SessionID,
			"error", err)
	}

	start := time.Now()
	reply, err := s.responder.Respond(ctx, req, history)
	if err != nil {
		s.logger.Error("agent failed",
			"request_id", req.RequestID,
			"session_id", req.SessionID,
			"error", err)
		reply = fmt.Sprintf("Sorry, I could not answer that: %v", err)
	} else {
		s.logger.Debug("agent replied",
			"request_id", req.RequestID,
			"duration", time.Since(start))
	}

	s.saveRow(&chat.Row{
		ID:        s.newID(),
		SessionID: req.SessionID,
		Message:   chat.Payload{Type: chat.TypeAI, Content: reply},
		CreatedAt: time.Now().UTC(),
	})
}

// saveRow saves a row with a separate timeout context
func (s *Service) saveRow(row *chat.Row) {
	saveCtx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if _, err := s.store.SaveRow(saveCtx, row); err != nil {
		s.logger.Error("failed to save reply",
			"error", err,
			"row_id", row.ID,
			"session_id", row.SessionID)
	}
}
