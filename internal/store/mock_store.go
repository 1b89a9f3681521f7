// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/2389/coven-chat/internal/chat"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu    sync.RWMutex
	rows  []chat.Row          // insertion order
	byID  map[string]struct{} // ids already stored
	seq   int64
	hooks []InsertHook

	// FailWith, when set, is returned by every list and save call.
	FailWith error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		byID: make(map[string]struct{}),
	}
}

// SaveRow stores a copy of row unless its id is already present.
func (m *MockStore) SaveRow(ctx context.Context, row *chat.Row) (bool, error) {
	if err := validateRow(row); err != nil {
		return false, err
	}

	m.mu.Lock()
	if m.FailWith != nil {
		m.mu.Unlock()
		return false, m.FailWith
	}
	if _, ok := m.byID[row.ID]; ok {
		m.mu.Unlock()
		return false, nil
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	m.seq++
	row.Seq = m.seq
	m.byID[row.ID] = struct{}{}
	m.rows = append(m.rows, *row)
	hooks := append([]InsertHook(nil), m.hooks...)
	m.mu.Unlock()

	for _, hook := range hooks {
		hook(*row)
	}
	return true, nil
}

// ListSession returns the rows of one session in insertion order.
func (m *MockStore) ListSession(ctx context.Context, sessionID string) ([]chat.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	out := make([]chat.Row, 0)
	for _, r := range m.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAll returns every row in insertion order.
func (m *MockStore) ListAll(ctx context.Context) ([]chat.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return append(make([]chat.Row, 0, len(m.rows)), m.rows...), nil
}

// ListAfter returns up to limit rows with Seq greater than seq.
func (m *MockStore) ListAfter(ctx context.Context, seq int64, limit int) ([]chat.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return nil, m.FailWith
	}

	limit = normalizeLimit(limit)
	out := make([]chat.Row, 0)
	for _, r := range m.rows {
		if r.Seq <= seq {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// LastSeq returns the sequence number of the newest row.
func (m *MockStore) LastSeq(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailWith != nil {
		return 0, m.FailWith
	}
	return m.seq, nil
}

// OnInsert registers a hook run after every successful insert.
func (m *MockStore) OnInsert(hook InsertHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
