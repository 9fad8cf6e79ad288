// Package ingest turns an uploaded document into indexed, user-scoped chunk
// vectors plus a metadata record.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa-backend/internal/chunker"
	"docqa-backend/internal/documents"
	"docqa-backend/internal/embedding"
	"docqa-backend/internal/extract"
	"docqa-backend/internal/shared/metrics"
	"docqa-backend/internal/shared/storage/object"
	"docqa-backend/internal/shared/telemetry"
	"docqa-backend/internal/vectorindex"
)

// DefaultConcurrency bounds parallel embedding calls per document.
const DefaultConcurrency = 4

// Stages a document moves through, in order.
const (
	StageReceived          = "received"
	StageTextExtracted     = "text_extracted"
	StageChunked           = "chunked"
	StageEmbeddedIndexed   = "embedded_indexed"
	StageMetadataPersisted = "metadata_persisted"
	StageComplete          = "complete"
	StageFailed            = "failed"
)

// Request is one document to ingest.
type Request struct {
	UserID       string
	DocumentName string
	FileName     string
	MimeType     string
	Data         []byte
	// SourceURL is set when the document was fetched from a URL; the raw
	// bytes are then not copied to the object store.
	SourceURL string
}

// Result reports the stored document.
type Result struct {
	DocumentID string
	ChunkCount int
}

// Pipeline wires the ingestion stages together.
type Pipeline struct {
	Extract   extract.Func
	Chunker   chunker.Chunker
	Embedder  embedding.Embedder
	Index     vectorindex.Index
	Documents documents.Repo
	// Store is optional; without it raw uploads are not retained.
	Store       object.ObjectStore
	Concurrency int
	BatchSize   int

	Now   func() time.Time
	NewID func() string
}

// Ingest runs the whole pipeline. A document is either fully searchable
// with its metadata persisted, or the call fails and no metadata exists.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	metrics.IncIngestStarted()

	res, stage, err := p.run(ctx, req)
	metrics.ObserveIngestDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	if err != nil {
		metrics.IncIngestFailed()
		telemetry.Error("ingest.stage", map[string]any{
			"stage":       StageFailed,
			"last_stage":  stage,
			"document_id": res.DocumentID,
			"user_id":     req.UserID,
			"err":         err.Error(),
		})
		return Result{DocumentID: res.DocumentID}, err
	}
	metrics.IncIngestCompleted(res.ChunkCount)
	logStage(StageComplete, req.UserID, res.DocumentID, map[string]any{
		"chunks":      res.ChunkCount,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, req Request) (Result, string, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.DocumentName = strings.TrimSpace(req.DocumentName)
	if req.DocumentName == "" {
		req.DocumentName = strings.TrimSpace(req.FileName)
	}
	if req.FileName == "" {
		req.FileName = req.DocumentName
	}
	switch {
	case req.UserID == "":
		return Result{}, StageReceived, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	case req.DocumentName == "":
		return Result{}, StageReceived, fmt.Errorf("%w: documentName is required", ErrInvalidInput)
	case len(req.Data) == 0:
		return Result{}, StageReceived, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	res := Result{DocumentID: p.newID()}
	logStage(StageReceived, req.UserID, res.DocumentID, map[string]any{
		"document_name": req.DocumentName,
		"size_bytes":    len(req.Data),
	})

	text, err := p.extract(ctx, req)
	if err != nil {
		return res, StageReceived, err
	}
	logStage(StageTextExtracted, req.UserID, res.DocumentID, map[string]any{"chars": len(text)})

	chunks := nonBlank(p.Chunker.Split(text))
	if len(chunks) == 0 {
		return res, StageTextExtracted, ErrEmptyDocument
	}
	logStage(StageChunked, req.UserID, res.DocumentID, map[string]any{"chunks": len(chunks)})

	mimeType := extract.NormalizeMimeType(req.MimeType, req.FileName, req.Data)
	storageKey, err := p.storeRaw(ctx, req)
	if err != nil {
		return res, StageChunked, err
	}

	createdAt := p.now()
	records, err := p.embed(ctx, res.DocumentID, req, chunks, createdAt)
	if err != nil {
		p.discardRaw(ctx, storageKey)
		return res, StageChunked, err
	}
	if err := vectorindex.UpsertBatched(ctx, p.Index, records, p.BatchSize); err != nil {
		p.discardRaw(ctx, storageKey)
		p.compensate(ctx, req.UserID, res.DocumentID)
		return res, StageChunked, fmt.Errorf("%w: %v", ErrIndex, err)
	}
	logStage(StageEmbeddedIndexed, req.UserID, res.DocumentID, map[string]any{"records": len(records)})

	doc := documents.Document{
		ID:         res.DocumentID,
		UserID:     req.UserID,
		Name:       req.DocumentName,
		SourceURL:  req.SourceURL,
		StorageKey: storageKey,
		MimeType:   mimeType,
		SizeBytes:  int64(len(req.Data)),
		ChunkCount: len(records),
		CreatedAt:  createdAt,
	}
	if err := p.Documents.Create(ctx, doc); err != nil {
		p.discardRaw(ctx, storageKey)
		p.compensate(ctx, req.UserID, res.DocumentID)
		return res, StageEmbeddedIndexed, fmt.Errorf("%w: %v", ErrMetadata, err)
	}
	logStage(StageMetadataPersisted, req.UserID, res.DocumentID, nil)

	res.ChunkCount = len(records)
	return res, StageMetadataPersisted, nil
}

func (p *Pipeline) extract(ctx context.Context, req Request) (string, error) {
	fn := p.Extract
	if fn == nil {
		fn = extract.TextFromBytes
	}
	text, err := fn(ctx, req.Data, req.MimeType, req.FileName)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, extract.ErrUnsupportedType):
		return "", fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", err
	default:
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
}

// embed computes every chunk vector. Any failure cancels the remaining
// calls and fails the document.
func (p *Pipeline) embed(ctx context.Context, documentID string, req Request, chunks []string, createdAt time.Time) ([]vectorindex.Record, error) {
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(embedding.WithInputType(ctx, embedding.InputDocument))
	g.SetLimit(concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			vec, err := p.Embedder.Embed(gctx, chunk)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("chunk %d: %w", i, embedding.ErrEmptyEmbedding)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	dim := len(vectors[0])
	records := make([]vectorindex.Record, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d", ErrEmbedding, i, len(vectors[i]), dim)
		}
		records[i] = vectorindex.Record{
			ID:           vectorindex.RecordID(documentID, i),
			DocumentID:   documentID,
			UserID:       req.UserID,
			ChunkIndex:   i,
			Text:         chunk,
			DocumentName: req.DocumentName,
			Vector:       vectors[i],
			CreatedAt:    createdAt,
		}
	}
	return records, nil
}

// nonBlank drops whitespace-only windows.
// Kept windows are renumbered so chunk indexes stay contiguous.
func nonBlank(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pipeline) storeRaw(ctx context.Context, req Request) (string, error) {
	if p.Store == nil || req.SourceURL != "" {
		return "", nil
	}
	key, _, _, err := p.Store.Save(ctx, req.UserID, req.FileName, bytes.NewReader(req.Data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return key, nil
}

func (p *Pipeline) discardRaw(ctx context.Context, storageKey string) {
	if p.Store == nil || storageKey == "" {
		return
	}
	if err := p.Store.Delete(context.WithoutCancel(ctx), storageKey); err != nil {
		telemetry.Warn("ingest.raw_cleanup_failed", map[string]any{"storage_key": storageKey, "err": err.Error()})
	}
}

// compensate removes vectors written for a document whose ingestion failed
// later on.
func (p *Pipeline) compensate(ctx context.Context, userID, documentID string) {
	n, err := p.Index.DeleteByDocument(context.WithoutCancel(ctx), vectorindex.Filter{UserID: userID}, documentID)
	if err != nil {
		telemetry.Error("ingest.compensation_failed", map[string]any{
			"document_id": documentID,
			"user_id":     userID,
			"err":         err.Error(),
		})
		return
	}
	telemetry.Warn("ingest.compensated", map[string]any{
		"document_id": documentID,
		"user_id":     userID,
		"removed":     n,
	})
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Pipeline) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return uuid.NewString()
}

func logStage(stage, userID, documentID string, extra map[string]any) {
	fields := map[string]any{
		"stage":       stage,
		"user_id":     userID,
		"document_id": documentID,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("ingest.stage", fields)
}
