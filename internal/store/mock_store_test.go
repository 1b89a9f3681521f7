// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on duplicate detection, ordering, and injected failures

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-chat/internal/chat"
)

func TestMockStore_SaveRow_Duplicate(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	inserted, err := store.SaveRow(ctx, testRow("r1", "s1", chat.TypeHuman, "first"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.SaveRow(ctx, testRow("r1", "s1", chat.TypeHuman, "again"))
	require.NoError(t, err)
	assert.False(t, inserted, "same id must not be stored twice")

	rows, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "first", rows[0].Message.Content)
}

func TestMockStore_SeqIncreases(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	a := testRow("a", "s", chat.TypeHuman, "1")
	b := testRow("b", "s", chat.TypeAI, "2")
	_, err := store.SaveRow(ctx, a)
	require.NoError(t, err)
	_, err = store.SaveRow(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)

	after, err := store.ListAfter(ctx, a.Seq, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "b", after[0].ID)

	last, err := store.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.Seq, last)
}

func TestMockStore_ListSession(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	for _, r := range []*chat.Row{
		testRow("1", "A", chat.TypeHuman, "a1"),
		testRow("2", "B", chat.TypeHuman, "b1"),
		testRow("3", "A", chat.TypeAI, "a2"),
	} {
		_, err := store.SaveRow(ctx, r)
		require.NoError(t, err)
	}

	rows, err := store.ListSession(ctx, "A")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a1", rows[0].Message.Content)
	assert.Equal(t, "a2", rows[1].Message.Content)
}

func TestMockStore_InvalidRow(t *testing.T) {
	store := NewMockStore()
	_, err := store.SaveRow(context.Background(), testRow("", "s", chat.TypeHuman, "x"))
	assert.ErrorIs(t, err, ErrInvalidRow)
}

func TestMockStore_FailWith(t *testing.T) {
	store := NewMockStore()
	store.FailWith = errors.New("disk full")
	ctx := context.Background()

	_, err := store.SaveRow(ctx, testRow("x", "s", chat.TypeHuman, "x"))
	assert.EqualError(t, err, "disk full")
	_, err = store.ListAll(ctx)
	assert.Error(t, err)
	_, err = store.ListSession(ctx, "s")
	assert.Error(t, err)
	_, err = store.ListAfter(ctx, 0, 10)
	assert.Error(t, err)
}

func TestMockStore_OnInsert(t *testing.T) {
	store := NewMockStore()
	var got []string
	store.OnInsert(func(row chat.Row) { got = append(got, row.ID) })

	ctx := context.Background()
	store.SaveRow(ctx, testRow("a", "s", chat.TypeHuman, "1"))
	store.SaveRow(ctx, testRow("a", "s", chat.TypeHuman, "1"))
	store.SaveRow(ctx, testRow("b", "s", chat.TypeAI, "2"))

	assert.Equal(t, []string{"a", "b"}, got)
}
