// ABOUTME: HTTP API handlers for agent dispatch and message history
// ABOUTME: Provides POST /api/agent and GET /api/messages for chat clients

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/2389/coven-chat/internal/auth"
	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/conversation"
)

// anonymousUser is the rate limit key for unauthenticated requests without a user_id.
const anonymousUser = "anonymous"

// Status values returned by POST /api/agent.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// AgentResponse is the JSON response for POST /api/agent.
type AgentResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

// MessagesResponse is the JSON response for GET /api/messages.
type MessagesResponse struct {
	SessionID string     `json:"session_id,omitempty"`
	Rows      []chat.Row `json:"rows"`
}

// handleAgent handles POST /api/agent requests.
//
// The query is recorded as a human row keyed by request_id before the
// response is written; the agent's reply arrives later on the event feed.
// A request_id seen before is acknowledged again without running the agent.
func (g *Gateway) handleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseAgentRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// An authenticated identity overrides whatever the body claims
	if userID, ok := auth.UserFromContext(r.Context()); ok {
		req.UserID = userID
	}
	if req.UserID == "" {
		req.UserID = anonymousUser
	}

	if g.dedupe.Seen(req.RequestID) {
		g.writeDuplicate(w, req)
		return
	}

	if !g.limiter.Allow(req.UserID) {
		g.logger.Warn("rate limit exceeded", "user_id", req.UserID)
		g.sendJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	if !g.dedupe.MarkIfNew(req.RequestID) {
		g.writeDuplicate(w, req)
		return
	}

	err = g.conversation.Submit(r.Context(), *req)
	switch {
	case errors.Is(err, conversation.ErrDuplicateRequest):
		g.writeDuplicate(w, req)
		return
	case errors.Is(err, conversation.ErrInvalidRequest):
		g.dedupe.Forget(req.RequestID)
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		// Let the client retry with the same request id
		g.dedupe.Forget(req.RequestID)
		g.logger.Error("failed to submit request", "request_id", req.RequestID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.logger.Info("agent request accepted",
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"user_id", req.UserID)

	g.writeJSON(w, http.StatusAccepted, AgentResponse{
		Status:    StatusAccepted,
		RequestID: req.RequestID,
	})
}

func (g *Gateway) writeDuplicate(w http.ResponseWriter, req *chat.AgentRequest) {
	g.logger.Debug("duplicate agent request", "request_id", req.RequestID)
	g.writeJSON(w, http.StatusOK, AgentResponse{
		Status:    StatusDuplicate,
		RequestID: req.RequestID,
	})
}

// handleMessages handles GET /api/messages requests.
// Returns every row in insertion order, or one session's rows with ?session_id=.
func (g *Gateway) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))

	var (
		rows []chat.Row
		err  error
	)
	if sessionID != "" {
		rows, err = g.store.ListSession(r.Context(), sessionID)
	} else {
		rows, err = g.store.ListAll(r.Context())
	}
	if err != nil {
		g.logger.Error("failed to list messages", "session_id", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if rows == nil {
		rows = []chat.Row{}
	}

	g.writeJSON(w, http.StatusOK, MessagesResponse{
		SessionID: sessionID,
		Rows:      rows,
	})
}

// writeJSON writes v as a JSON response with the given status.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// parseAgentRequest parses and validates an AgentRequest from the given reader.
// Returns an error if the JSON is invalid or query, request_id or session_id is missing.
func parseAgentRequest(r io.Reader) (*chat.AgentRequest, error) {
	var req chat.AgentRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, errors.New("invalid JSON body")
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, errors.New("query is required")
	}

	if req.RequestID == "" {
		return nil, errors.New("request_id is required")
	}

	if req.SessionID == "" {
		return nil, errors.New("session_id is required")
	}

	return &req, nil
}
