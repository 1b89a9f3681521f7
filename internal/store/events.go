// ABOUTME: Message row persistence and ordered queries on the SQLite store
// ABOUTME: Inserts are idempotent by id and fan out to registered insert hooks

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/coven-chat/internal/chat"
)

const rowColumns = `seq, id, session_id, type, content, created_at`

// SaveRow persists a row. A row whose id is already stored is ignored and
// reported as not inserted; hooks only run for new rows.
func (s *SQLiteStore) SaveRow(ctx context.Context, row *chat.Row) (bool, error) {
	if err := validateRow(row); err != nil {
		return false, err
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, session_id, type, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		row.ID,
		row.SessionID,
		string(row.Message.Type),
		row.Message.Content,
		row.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("inserting row: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		s.logger.Debug("row already stored", "id", row.ID)
		return false, nil
	}

	row.Seq, err = result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("reading row sequence: %w", err)
	}

	s.logger.Debug("saved row",
		"id", row.ID,
		"seq", row.Seq,
		"session_id", row.SessionID,
		"type", row.Message.Type,
	)

	s.runHooks(*row)
	return true, nil
}

func (s *SQLiteStore) runHooks(row chat.Row) {
	s.hooksMu.RLock()
	hooks := append([]InsertHook(nil), s.hooks...)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(row)
	}
}

// ListSession returns every row of a session in insertion order.
func (s *SQLiteStore) ListSession(ctx context.Context, sessionID string) ([]chat.Row, error) {
	query := `SELECT ` + rowColumns + ` FROM messages WHERE session_id = ? ORDER BY seq ASC`
	return s.queryRows(ctx, query, sessionID)
}

// ListAll returns every row in insertion order.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]chat.Row, error) {
	query := `SELECT ` + rowColumns + ` FROM messages ORDER BY seq ASC`
	return s.queryRows(ctx, query)
}

// ListAfter returns up to limit rows inserted after seq, oldest first.
// Limit defaults to 50 and is capped at 500.
func (s *SQLiteStore) ListAfter(ctx context.Context, seq int64, limit int) ([]chat.Row, error) {
	query := `SELECT ` + rowColumns + ` FROM messages WHERE seq > ? ORDER BY seq ASC LIMIT ?`
	return s.queryRows(ctx, query, seq, normalizeLimit(limit))
}

// LastSeq returns the sequence number of the newest row, or 0 when empty.
func (s *SQLiteStore) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM messages`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("querying last seq: %w", err)
	}
	return seq, nil
}

// queryRows runs query and scans each result into a chat.Row.
func (s *SQLiteStore) queryRows(ctx context.Context, query string, args ...any) ([]chat.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Row, 0)
	for rows.Next() {
		var r chat.Row
		var msgType, createdAt string
		if err := rows.Scan(&r.Seq, &r.ID, &r.SessionID, &msgType, &r.Message.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		r.Message.Type = chat.MessageType(msgType)
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
