// ABOUTME: Server-Sent Events feed of persisted rows for realtime clients
// ABOUTME: Replays rows after Last-Event-ID from the store, then streams live inserts

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/conversation"
)

const (
	// EventInsert is the SSE event name for a newly persisted row.
	EventInsert = "insert"

	// replayPageSize is the store page size used while catching up.
	replayPageSize = 200
)

// handleEvents handles GET /api/events requests.
//
// Each row is written as an "insert" event whose id is the row's sequence
// number. A client reconnecting with Last-Event-ID (or ?after=N) first gets
// every row it missed, in order, then live rows. A fresh stream instead opens
// with an id-only event carrying the store's newest sequence number, so the
// client holds a resume point before any row arrives. The subscription is
// taken before either lookup so nothing inserted in between is lost; live
// rows already covered by the replay are skipped.
//
// The stream ends if the subscriber falls behind the broadcaster. The client
// then reconnects and the replay fills the gap.
func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	after, resume, err := parseResumePoint(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Check streaming support before subscribing (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.logger.Error("streaming not supported")
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	live, subID := g.eventBroadcaster.Subscribe(ctx, conversation.AllSessions)
	defer g.eventBroadcaster.Unsubscribe(conversation.AllSessions, subID)

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")

	if !resume {
		last, err := g.store.LastSeq(ctx)
		if err != nil {
			g.logger.Error("failed to read last sequence", "error", err)
			return
		}
		fmt.Fprintf(w, "id: %d\n\n", last)
	}
	flusher.Flush()

	g.logger.Debug("event stream opened", "after", after, "resume", resume)

	replayed := after
	if resume {
		for {
			rows, err := g.store.ListAfter(ctx, replayed, replayPageSize)
			if err != nil {
				g.logger.Error("failed to replay rows", "after", replayed, "error", err)
				return
			}
			for _, row := range rows {
				g.writeRowEvent(w, row)
				replayed = row.Seq
			}
			flusher.Flush()
			if len(rows) < replayPageSize {
				break
			}
		}
	}

	ticker := time.NewTicker(g.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Debug("event stream closed by client")
			return

		case row, ok := <-live:
			if !ok {
				g.logger.Debug("event subscription closed")
				return
			}
			if row.Seq <= replayed {
				continue
			}
			g.writeRowEvent(w, row)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeRowEvent writes a single insert event to the response writer.
func (g *Gateway) writeRowEvent(w http.ResponseWriter, row chat.Row) {
	dataJSON, err := json.Marshal(row)
	if err != nil {
		g.logger.Error("failed to marshal SSE data", "row_id", row.ID, "error", err)
		return
	}

	fmt.Fprintf(w, "id: %d\n", row.Seq)
	fmt.Fprintf(w, "event: %s\n", EventInsert)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// parseResumePoint reads the sequence number to resume after from the
// Last-Event-ID header, falling back to the ?after= query parameter. ok is
// false when the request names no resume point.
func parseResumePoint(r *http.Request) (seq int64, ok bool, err error) {
	raw := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("after"))
	}
	if raw == "" {
		return 0, false, nil
	}

	seq, err = strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, false, fmt.Errorf("invalid event id %q", raw)
	}
	return seq, true, nil
}
