// ABOUTME: Conversation index derived from persisted message rows
// ABOUTME: One summary per session titled by its first human message, most recent first

package index

import (
	"context"
	"log/slog"
	"slices"

	"github.com/2389/coven-chat/internal/chat"
)

// RowSource provides every persisted row. engine.HistorySource satisfies it.
type RowSource interface {
	AllRows(ctx context.Context) ([]chat.Row, error)
}

// Build derives conversation summaries from rows.
//
// Rows are ordered by creation time (ties keep input order). The first human
// row of each session defines its title and created_at; sessions with no
// human row are omitted. The result lists the most recently started session
// first. Build does not modify rows.
func Build(rows []chat.Row) []chat.Conversation {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b chat.Row) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	seen := make(map[string]struct{})
	convs := make([]chat.Conversation, 0)
	for _, r := range sorted {
		if r.Message.Type != chat.TypeHuman {
			continue
		}
		if _, ok := seen[r.SessionID]; ok {
			continue
		}
		seen[r.SessionID] = struct{}{}
		convs = append(convs, chat.Conversation{
			SessionID: r.SessionID,
			Title:     chat.Truncate(r.Message.Content, chat.MaxTitleRunes),
			CreatedAt: r.CreatedAt,
		})
	}

	slices.Reverse(convs)
	return convs
}

// Indexer loads the conversation index from a RowSource.
type Indexer struct {
	source RowSource
	logger *slog.Logger
}

// New creates an Indexer. A nil logger uses slog.Default().
func New(source RowSource, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		source: source,
		logger: logger.With("component", "index"),
	}
}

// Load fetches all rows once and builds the index. On failure the error is a
// *chat.HistoryLoadError and the caller should keep whatever list it shows.
func (i *Indexer) Load(ctx context.Context) ([]chat.Conversation, error) {
	rows, err := i.source.AllRows(ctx)
	if err != nil {
		i.logger.Warn("failed to load conversation index", "error", err)
		return nil, &chat.HistoryLoadError{Err: err}
	}

	convs := Build(rows)
	i.logger.Debug("conversation index loaded",
		"rows", len(rows),
		"conversations", len(convs))
	return convs, nil
}
