// Package conversation runs the gateway side of a chat exchange.
//
// # Service
//
// The Service turns an agent request into two persisted rows:
//
//	svc := conversation.New(store, conversation.EchoAgent{}, 0, logger)
//	err := svc.Submit(ctx, req)
//
//  1. The query is saved as a human row whose id is the request id
//  2. Submit returns; the caller acknowledges the request
//  3. The Responder runs in the background with the session history
//  4. Its answer, or a description of its failure, is saved as an ai row
//
// Because the human row is keyed by the request id, a retried request is
// recognized by the store and answered with ErrDuplicateRequest instead of
// running the agent twice.
//
// # Event Broadcasting
//
// EventBroadcaster fans persisted rows out to live subscribers. Wire it to
// the store's insert hook so every committed row is published exactly once:
//
//	st.OnInsert(broadcaster.Publish)
//	rows, subID := broadcaster.Subscribe(ctx, conversation.AllSessions)
//
// Publishing never blocks. A subscriber whose buffer is full is dropped and
// its channel closed, so it sees the end of its stream and can catch up
// from the store instead of silently missing rows.
package conversation
