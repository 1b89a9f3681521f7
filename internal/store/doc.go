// Package store persists chat message rows using SQLite.
//
// # Data Model
//
// A single messages table holds every row the gateway has seen:
//
//	seq        INTEGER PRIMARY KEY AUTOINCREMENT  -- feed cursor
//	id         TEXT UNIQUE                        -- message id (request id for human rows)
//	session_id TEXT
//	type       TEXT                               -- 'human' or 'ai'
//	content    TEXT
//	created_at TEXT                               -- RFC3339Nano, UTC
//
// Rows are never updated or deleted. SaveRow is idempotent by id, which lets
// the gateway record a retried request without storing it twice.
//
// # Ordering
//
// All list queries return rows in insertion (seq) order. The realtime feed
// uses seq as its SSE event id, so a reconnecting client can resume with
// ListAfter(lastSeq, limit).
//
// # Insert Hooks
//
// OnInsert registers a callback that runs after each new row is committed.
// The gateway uses it to publish rows to live subscribers:
//
//	st.OnInsert(func(row chat.Row) { broadcaster.Publish(row) })
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Use NewSQLiteStore(":memory:") or NewMockStore() in tests.
package store
