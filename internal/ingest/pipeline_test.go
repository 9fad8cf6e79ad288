package ingest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"docqa-backend/internal/chunker"
	"docqa-backend/internal/documents"
	"docqa-backend/internal/embedding"
	"docqa-backend/internal/shared/storage/object/local"
	"docqa-backend/internal/vectorindex"
)

type flakyEmbedder struct {
	base  embedding.Embedder
	fail  string
	calls atomic.Int32
}

func (f *flakyEmbedder) Model() string { return f.base.Model() }

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.fail != "" && strings.Contains(text, f.fail) {
		return nil, errors.New("embedding provider http status 500")
	}
	return f.base.Embed(ctx, text)
}

type failingDocs struct {
	*documents.MemoryRepo
}

func (failingDocs) Create(ctx context.Context, doc documents.Document) error {
	return errors.New("connection refused")
}

type fixture struct {
	pipeline *Pipeline
	index    *vectorindex.MemoryIndex
	docs     *documents.MemoryRepo
	embedder *flakyEmbedder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		index:    vectorindex.NewMemoryIndex(0),
		docs:     documents.NewMemoryRepo(),
		embedder: &flakyEmbedder{base: embedding.NewHashEmbedder(64)},
	}
	f.pipeline = &Pipeline{
		Chunker:     chunker.New(1000),
		Embedder:    f.embedder,
		Index:       f.index,
		Documents:   f.docs,
		Store:       local.New(t.TempDir()),
		Concurrency: 3,
		BatchSize:   2,
	}
	return f
}

// numbered builds text whose every 1000-rune window is distinguishable.
func numbered(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		b.WriteString("w")
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(' ')
	}
	return b.String()[:n]
}

func TestIngestTextDocumentIndexesAllChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	text := numbered(2500)

	res, err := f.pipeline.Ingest(ctx, Request{
		UserID:       "user-1",
		DocumentName: "notes.txt",
		MimeType:     "text/plain",
		Data:         []byte(text),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.DocumentID)
	require.Equal(t, 3, res.ChunkCount)
	require.Equal(t, 3, f.index.Len())

	doc, err := f.docs.GetByID(ctx, "user-1", res.DocumentID)
	require.NoError(t, err)
	require.Equal(t, 3, doc.ChunkCount)
	require.Equal(t, "notes.txt", doc.Name)
	require.NotEmpty(t, doc.StorageKey)

	vec, err := embedding.NewHashEmbedder(64).Embed(ctx, text[1000:2000])
	require.NoError(t, err)
	matches, err := f.index.Search(ctx, vec, 5, vectorindex.Filter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for _, m := range matches {
		require.Equal(t, vectorindex.RecordID(res.DocumentID, m.ChunkIndex), m.ID)
		require.Equal(t, text[m.ChunkIndex*1000:min((m.ChunkIndex+1)*1000, len(text))], m.Text)
	}
	require.Equal(t, 1, matches[0].ChunkIndex)

	other, err := f.index.Search(ctx, vec, 5, vectorindex.Filter{UserID: "user-2"})
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestIngestExtractionFailureWritesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "user-1",
		DocumentName: "broken.pdf",
		MimeType:     "application/pdf",
		Data:         []byte("%PDF-1.4 garbage"),
	})
	require.ErrorIs(t, err, ErrExtraction)
	require.Zero(t, f.index.Len())
	require.Zero(t, f.embedder.calls.Load())

	docs, err := f.docs.ListByUser(context.Background(), "user-1", 0, 0)
	require.NoError(t, err)
	require.Empty(t, docs)
}

func TestIngestEmptyDocument(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "user-1",
		DocumentName: "blank.txt",
		MimeType:     "text/plain",
		Data:         []byte("   \n\t "),
	})
	require.ErrorIs(t, err, ErrEmptyDocument)
	require.Zero(t, f.index.Len())
}

func TestIngestSkipsWhitespaceOnlyWindows(t *testing.T) {
	f := newFixture(t)
	text := numbered(1000) + "\n"

	res, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "user-1",
		DocumentName: "exact.txt",
		MimeType:     "text/plain",
		Data:         []byte(text),
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.ChunkCount)
	require.Equal(t, 1, f.index.Len())
	require.EqualValues(t, 1, f.embedder.calls.Load())

	doc, err := f.docs.GetByID(context.Background(), "user-1", res.DocumentID)
	require.NoError(t, err)
	require.Equal(t, res.ChunkCount, doc.ChunkCount)
}

func TestIngestEmbeddingFailureIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	text := numbered(2000) + "BOOM" + numbered(1500)
	f.embedder.fail = "BOOM"

	_, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "user-1",
		DocumentName: "big.txt",
		MimeType:     "text/plain",
		Data:         []byte(text),
	})
	require.ErrorIs(t, err, ErrEmbedding)
	require.Zero(t, f.index.Len())

	docs, _ := f.docs.ListByUser(context.Background(), "user-1", 0, 0)
	require.Empty(t, docs)
}

func TestIngestMetadataFailureRemovesVectors(t *testing.T) {
	f := newFixture(t)
	f.pipeline.Documents = failingDocs{MemoryRepo: f.docs}

	_, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "user-1",
		DocumentName: "notes.txt",
		MimeType:     "text/plain",
		Data:         []byte(numbered(1500)),
	})
	require.ErrorIs(t, err, ErrMetadata)
	require.Zero(t, f.index.Len())
}

func TestIngestValidation(t *testing.T) {
	f := newFixture(t)
	tests := []Request{
		{DocumentName: "a.txt", Data: []byte("x")},
		{UserID: "u", Data: []byte("x")},
		{UserID: "u", DocumentName: "a.txt"},
	}
	for _, req := range tests {
		_, err := f.pipeline.Ingest(context.Background(), req)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestIngestUnsupportedType(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "u",
		DocumentName: "pic.png",
		MimeType:     "image/png",
		Data:         []byte{0x89, 'P', 'N', 'G'},
	})
	require.ErrorIs(t, err, ErrUnsupportedType)
}

func TestIngestFromURLSkipsObjectStore(t *testing.T) {
	f := newFixture(t)
	res, err := f.pipeline.Ingest(context.Background(), Request{
		UserID:       "u",
		DocumentName: "remote",
		FileName:     "remote.txt",
		MimeType:     "text/plain",
		Data:         []byte("remote document body"),
		SourceURL:    "https://example.com/remote.txt",
	})
	require.NoError(t, err)

	doc, err := f.docs.GetByID(context.Background(), "u", res.DocumentID)
	require.NoError(t, err)
	require.Empty(t, doc.StorageKey)
	require.Equal(t, "https://example.com/remote.txt", doc.SourceURL)
}
