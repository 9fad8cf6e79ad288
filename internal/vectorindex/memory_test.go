package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func rec(id, doc, user string, idx int, vec ...float32) Record {
	return Record{ID: id, DocumentID: doc, UserID: user, ChunkIndex: idx, Text: id, Vector: vec}
}

func TestMemoryIndexSearchIsScopedToUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex(2)
	require.NoError(t, idx.Upsert(ctx, []Record{
		rec("a-0", "a", "alice", 0, 1, 0),
		rec("a-1", "a", "alice", 1, 0.8, 0.2),
		rec("b-0", "b", "bob", 0, 1, 0),
	}))

	matches, err := idx.Search(ctx, []float32{1, 0}, 10, Filter{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		require.Equal(t, "alice", m.UserID)
		require.Nil(t, m.Vector)
	}
	require.Equal(t, "a-0", matches[0].ID)
	require.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	none, err := idx.Search(ctx, []float32{1, 0}, 10, Filter{UserID: "carol"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestMemoryIndexRequiresFilter(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(0)
	_, err := idx.Search(context.Background(), []float32{1}, 5, Filter{})
	require.ErrorIs(t, err, ErrFilterRequired)
	_, err = idx.DeleteByDocument(context.Background(), Filter{}, "doc")
	require.ErrorIs(t, err, ErrFilterRequired)
}

func TestMemoryIndexUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex(0)
	records := []Record{rec("d-0", "d", "u", 0, 1, 1), rec("d-1", "d", "u", 1, 1, -1)}
	require.NoError(t, idx.Upsert(ctx, records))
	require.NoError(t, idx.Upsert(ctx, records))
	require.Equal(t, 2, idx.Len())
}

func TestMemoryIndexTopKDefaultAndBound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex(0)
	var records []Record
	for i := 0; i < 8; i++ {
		records = append(records, rec(RecordID("d", i), "d", "u", i, float32(i+1), 1))
	}
	require.NoError(t, idx.Upsert(ctx, records))

	got, err := idx.Search(ctx, []float32{1, 1}, 0, Filter{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, got, DefaultTopK)

	got, err = idx.Search(ctx, []float32{1, 1}, 3, Filter{UserID: "u"})
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestMemoryIndexDeleteByDocumentOnlyTouchesOwner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx := NewMemoryIndex(0)
	require.NoError(t, idx.Upsert(ctx, []Record{
		rec("x-0", "x", "alice", 0, 1),
		rec("x-1", "x", "alice", 1, 1),
		rec("x-0-bob", "x", "bob", 0, 1),
	}))

	n, err := idx.DeleteByDocument(ctx, Filter{UserID: "bob"}, "x")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = idx.DeleteByDocument(ctx, Filter{UserID: "alice"}, "x")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Zero(t, idx.Len())
}

func TestMemoryIndexRejectsInvalidRecords(t *testing.T) {
	t.Parallel()
	idx := NewMemoryIndex(3)
	require.ErrorIs(t, idx.Upsert(context.Background(), []Record{rec("a", "d", "", 0, 1, 2, 3)}), ErrInvalidRecord)
	require.ErrorIs(t, idx.Upsert(context.Background(), []Record{rec("a", "d", "u", 0, 1, 2)}), ErrDimensionMismatch)
}

func TestRecordIDAndShortTag(t *testing.T) {
	t.Parallel()
	require.Equal(t, "doc-7", RecordID("doc", 7))
	require.Equal(t, "Document-12345678", ShortDocumentTag("123456789abc"))
	require.Equal(t, "Document-abc", ShortDocumentTag("abc"))
}
