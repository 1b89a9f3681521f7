// ABOUTME: HTML transcript export of one persisted session
// ABOUTME: Renders stored rows through the same template the chat client uses for /export

package gateway

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/render"
)

// handleTranscript serves GET /api/transcript?session_id=...
func (g *Gateway) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		g.sendJSONError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	rows, err := g.store.ListSession(r.Context(), sessionID)
	if err != nil {
		g.logger.Error("failed to list messages", "session_id", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if len(rows) == 0 {
		g.sendJSONError(w, http.StatusNotFound, "session not found")
		return
	}

	// Render fully before writing so a template failure can still be a 500.
	var buf bytes.Buffer
	err = render.WriteHTML(&buf, render.Transcript{
		SessionID: sessionID,
		Messages:  chat.RowsToMessages(rows),
	})
	if err != nil {
		g.logger.Error("failed to render transcript", "session_id", sessionID, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
