// Package timeline holds the ordered message list of the active session.
//
// A Timeline is append-only while its session is active. Append is
// idempotent per message id, which lets the engine accept at-least-once
// realtime delivery and optimistic local echoes without showing a message
// twice. Replace swaps the whole list when a session is hydrated from
// history, and Clear empties it when a new session starts.
package timeline
