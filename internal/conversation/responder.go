// ABOUTME: Built-in echo responder used when no external agent is configured
// ABOUTME: Replies with markdown so transcript rendering has something to format

package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389/coven-chat/internal/chat"
)

// EchoAgent answers every query by echoing it back in markdown.
type EchoAgent struct {
	// Delay simulates agent latency before replying.
	Delay time.Duration
}

// Respond implements Responder.
func (a EchoAgent) Respond(ctx context.Context, req chat.AgentRequest, history []chat.Row) (string, error) {
	if a.Delay > 0 {
		select {
		case <-time.After(a.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return echoReply(req.Query, countHuman(history)), nil
}

func countHuman(rows []chat.Row) int {
	n := 0
	for _, r := range rows {
		if r.Message.Type == chat.TypeHuman {
			n++
		}
	}
	return n
}

func echoReply(input string, turn int) string {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "markdown") || strings.Contains(lower, "bullet") || strings.Contains(lower, "list") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote.\n"
	}
	return fmt.Sprintf("Echo: **%s**\n\nThis is message %d in this conversation.", input, turn)
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(ctx context.Context, req chat.AgentRequest, history []chat.Row) (string, error)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, req chat.AgentRequest, history []chat.Row) (string, error) {
	return f(ctx, req, history)
}
