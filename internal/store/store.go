// ABOUTME: Store interface for persisted chat message rows
// ABOUTME: Rows are append-only, unique by id, and ordered by insertion sequence

package store

import (
	"context"
	"errors"

	"github.com/2389/coven-chat/internal/chat"
)

// ErrInvalidRow is returned when a row is missing its id or session, or has
// a message type the store does not know.
var ErrInvalidRow = errors.New("invalid row")

// InsertHook is called after a row is persisted, with Seq populated.
type InsertHook func(row chat.Row)

// Store defines the interface for message row persistence.
type Store interface {
	// SaveRow inserts row unless a row with the same id exists. It reports
	// whether the row was inserted and, if so, sets row.Seq.
	SaveRow(ctx context.Context, row *chat.Row) (bool, error)

	// ListSession returns every row of one session in insertion order.
	ListSession(ctx context.Context, sessionID string) ([]chat.Row, error)

	// ListAll returns every row in insertion order.
	ListAll(ctx context.Context) ([]chat.Row, error)

	// ListAfter returns up to limit rows with Seq greater than seq.
	ListAfter(ctx context.Context, seq int64, limit int) ([]chat.Row, error)

	// LastSeq returns the highest sequence number stored, or 0 when empty.
	LastSeq(ctx context.Context) (int64, error)

	// OnInsert registers a hook run after every successful insert.
	OnInsert(hook InsertHook)

	Close() error
}

func validateRow(row *chat.Row) error {
	if row.ID == "" || row.SessionID == "" {
		return ErrInvalidRow
	}
	if _, err := row.Message.Type.Role(); err != nil {
		return ErrInvalidRow
	}
	return nil
}

// normalizeLimit applies default (50) and cap (500) to a page size.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
