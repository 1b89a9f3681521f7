// Package client talks to coven-chat-gateway over HTTP.
//
// # Overview
//
// A Client covers the three things a chat frontend needs from the gateway:
//
//   - Dispatch: POST /api/agent, acknowledged by any 2xx response
//   - SessionRows and AllRows: GET /api/messages, rows in creation order
//   - Subscribe: GET /api/events, a Server-Sent Events feed of new rows
//
// Dispatch, SessionRows and AllRows satisfy engine.AgentClient and
// engine.HistorySource; AllRows also feeds the conversation index.
//
// # Realtime Feed
//
// Subscribe returns a channel that survives disconnects. Each reconnect waits
// ReconnectMin, doubling up to ReconnectMax, and sends the last event id seen
// so the gateway replays what was missed. Rows are filtered through a
// dedupe.Cache keyed by row id, so a replay never yields the same row twice:
//
//	feed := c.Subscribe(ctx)
//	go eng.Run(ctx, feed)
//
// The feed carries every session; the engine drops rows for sessions that
// are not active.
package client
