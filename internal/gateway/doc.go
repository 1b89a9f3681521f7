// Package gateway orchestrates the coven-chat-gateway server components.
//
// # Overview
//
// The gateway is the server side of coven-chat. It owns the message store,
// the conversation service that runs the agent, and the HTTP server that
// chat clients talk to.
//
// # Gateway Struct
//
// The Gateway struct is the main entry point:
//
//	type Gateway struct {
//	    config           *config.Config
//	    store            store.Store
//	    conversation     *conversation.Service
//	    httpServer       *http.Server
//	    dedupe           *dedupe.Cache[string]
//	    limiter          *userRateLimiter
//	    eventBroadcaster *conversation.EventBroadcaster
//	    // ... and more
//	}
//
// # HTTP API
//
//   - POST /api/agent - Record a query and run the agent (202 Accepted)
//   - GET /api/messages - Rows in insertion order, optionally ?session_id=
//   - GET /api/events - Server-Sent Events feed of inserted rows
//   - GET /health - Liveness check
//
// When auth.jwt_secret is configured every /api/ route requires a bearer
// token, and the token's subject replaces the user_id in agent requests.
//
// # Agent Requests
//
// POST /api/agent takes {query, user_id, request_id, session_id}. The query
// is stored as a human row whose id is the request_id, so a retried request
// is answered 200 {"status":"duplicate"} without running the agent twice.
// Requests beyond the per-user rate limit get 429.
//
// # SSE Streaming
//
// Every row inserted into the store is pushed to all event streams:
//
//	id: 42
//	event: insert
//	data: {"seq":42,"id":"...","session_id":"...","message":{"type":"ai","content":"..."},"created_at":"..."}
//
// A new stream without Last-Event-ID starts with an id-only event naming the
// newest stored sequence:
//
//	id: 41
//
// A reconnecting client sends Last-Event-ID and receives every row after it
// before live rows resume. A stream that falls too far behind is closed and
// the client catches up on reconnect. Idle streams get a ": ping" comment.
//
// # Lifecycle
//
// Start the gateway:
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	go gw.Run(ctx)
//
// Run shuts down by itself when ctx is canceled. Shutdown closes event
// streams, waits for in-flight agent runs, then closes the store.
//
// # Key Files
//
//   - gateway.go: Gateway struct, initialization, Run/Shutdown
//   - api.go: agent and history handlers
//   - events.go: SSE feed with resume
//   - ratelimit.go: per-user token buckets
package gateway
