// ABOUTME: Realtime row subscription over the gateway's Server-Sent Events feed
// ABOUTME: Reconnects with exponential backoff, resumes by Last-Event-ID, and drops repeated rows

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/chat"
	"github.com/2389/coven-chat/internal/dedupe"
)

const (
	// EventInsert is the SSE event name the gateway uses for new rows.
	EventInsert = "insert"

	// feedBufferSize matches the gateway's per-subscriber buffer.
	feedBufferSize = 64

	// maxEventSize bounds a single SSE line.
	maxEventSize = 1 << 20
)

// errStreamClosed is returned when the server ends the stream cleanly.
var errStreamClosed = errors.New("event stream closed by server")

// sseEvent represents a parsed Server-Sent Event.
type sseEvent struct {
	ID   string
	Type string
	Data string
}

// Subscribe opens the realtime feed and returns a channel of rows for every
// session. The channel closes when ctx is done.
//
// Delivery is at-least-once on the wire: after a reconnect the gateway
// replays from the last event id received. Rows already delivered on this
// subscription are dropped before they reach the channel.
func (c *Client) Subscribe(ctx context.Context) <-chan chat.Row {
	out := make(chan chat.Row, feedBufferSize)
	go c.runFeed(ctx, out)
	return out
}

func (c *Client) runFeed(ctx context.Context, out chan<- chat.Row) {
	defer close(out)

	seen := dedupe.New[string](dedupe.DefaultTTL, dedupe.DefaultMaxSize)
	defer seen.Close()

	var lastEventID string
	backoff := c.reconnectMin

	for {
		connected, err := c.stream(ctx, &lastEventID, seen, out)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = c.reconnectMin
			c.reportStatus(false, err)
		}

		c.logger.Warn("event stream disconnected",
			"error", err,
			"last_event_id", lastEventID,
			"retry_in", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.reconnectMax)
	}
}

// stream runs one connection. connected reports whether the server accepted
// it, which resets the backoff.
func (c *Client) stream(ctx context.Context, lastEventID *string, seen *dedupe.Cache[string], out chan<- chat.Row) (connected bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if *lastEventID != "" {
		httpReq.Header.Set("Last-Event-ID", *lastEventID)
	}
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return false, fmt.Errorf("connecting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, c.handleErrorResponse(resp)
	}

	c.logger.Debug("event stream connected", "last_event_id", *lastEventID)
	c.reportStatus(true, nil)

	err = parseSSEStream(ctx, resp.Body, func(ev sseEvent) bool {
		if ev.ID != "" {
			*lastEventID = ev.ID
		}
		if ev.Type != EventInsert {
			return true
		}

		var row chat.Row
		if err := json.Unmarshal([]byte(ev.Data), &row); err != nil {
			c.logger.Warn("dropping malformed event", "event_id", ev.ID, "error", err)
			return true
		}
		if !seen.MarkIfNew(row.ID) {
			c.logger.Debug("dropping repeated row", "row_id", row.ID)
			return true
		}

		select {
		case out <- row:
			return true
		case <-ctx.Done():
			return false
		}
	})
	return true, err
}

func (c *Client) reportStatus(connected bool, err error) {
	if c.onStatus != nil {
		c.onStatus(connected, err)
	}
}

// parseSSEStream reads SSE events from body and passes each to onEvent until
// onEvent returns false, ctx is done, or the stream ends.
func parseSSEStream(ctx context.Context, body io.Reader, onEvent func(sseEvent) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var ev sseEvent
	var dataLines []string

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()

		// Empty line signals end of event. An event with only an id still
		// moves the resume point, so it is passed on with an empty Type.
		if line == "" {
			if len(dataLines) > 0 {
				ev.Data = strings.Join(dataLines, "\n")
				if ev.Type == "" {
					ev.Type = "message"
				}
			}
			if len(dataLines) > 0 || ev.ID != "" {
				if !onEvent(ev) {
					return ctx.Err()
				}
			}
			ev = sseEvent{}
			dataLines = nil
			continue
		}

		// Comment lines keep the connection alive
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "id":
			ev.ID = value
		case "event":
			ev.Type = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading SSE stream: %w", err)
	}
	return errStreamClosed
}
