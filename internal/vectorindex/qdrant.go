package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QdrantConfig configures QdrantIndex.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dim        int
	Timeout    time.Duration
}

// QdrantIndex is a REST client for a Qdrant collection using cosine
// distance.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	dim        int
	client     *http.Client
}

var errQdrantNotFound = errors.New("qdrant resource not found")

// NewQdrantIndex validates cfg and returns a client.
func NewQdrantIndex(cfg QdrantConfig) (*QdrantIndex, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("QDRANT_URL is required")
	}
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = "document_embeddings"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		collection: collection,
		dim:        cfg.Dim,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantFilter struct {
	Must []qdrantCondition `json:"must"`
}

type qdrantCondition struct {
	Key   string         `json:"key"`
	Match map[string]any `json:"match"`
}

// EnsureCollection creates the collection and its user_id payload index
// when the collection does not exist yet.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	q.dim = dim
	err := q.do(ctx, http.MethodGet, q.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errQdrantNotFound) {
		return err
	}
	create := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	if err := q.do(ctx, http.MethodPut, q.collectionPath(""), create, nil); err != nil {
		return err
	}
	for _, field := range []string{"user_id", "document_id"} {
		index := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := q.do(ctx, http.MethodPut, q.collectionPath("/index?wait=true"), index, nil); err != nil {
			return err
		}
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, q.dim); err != nil {
		return err
	}
	points := make([]qdrantPoint, len(records))
	for i, r := range records {
		createdAt := r.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		points[i] = qdrantPoint{
			ID:     pointID(r.ID),
			Vector: r.Vector,
			Payload: map[string]any{
				"record_id":     r.ID,
				"document_id":   r.DocumentID,
				"user_id":       r.UserID,
				"chunk_index":   r.ChunkIndex,
				"text":          r.Text,
				"document_name": r.DocumentName,
				"created_at":    createdAt.Format(time.RFC3339Nano),
			},
		}
	}
	return q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if q.dim > 0 && len(vector) != q.dim {
		return nil, ErrDimensionMismatch
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        normalizeTopK(topK),
		"with_payload": true,
		"filter":       userFilter(filter.UserID),
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionPath("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(resp.Result))
	for _, hit := range resp.Result {
		rec := Record{
			ID:           payloadString(hit.Payload, "record_id"),
			DocumentID:   payloadString(hit.Payload, "document_id"),
			UserID:       payloadString(hit.Payload, "user_id"),
			Text:         payloadString(hit.Payload, "text"),
			DocumentName: payloadString(hit.Payload, "document_name"),
		}
		// Hits outside the filter are dropped even if the server returns them.
		if rec.UserID != filter.UserID {
			continue
		}
		if v, ok := hit.Payload["chunk_index"].(float64); ok {
			rec.ChunkIndex = int(v)
		}
		if ts, err := time.Parse(time.RFC3339Nano, payloadString(hit.Payload, "created_at")); err == nil {
			rec.CreatedAt = ts
		}
		matches = append(matches, Match{Record: rec, Score: hit.Score})
	}
	return matches, nil
}

func (q *QdrantIndex) DeleteByDocument(ctx context.Context, filter Filter, documentID string) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	f := userFilter(filter.UserID)
	f.Must = append(f.Must, qdrantCondition{Key: "document_id", Match: map[string]any{"value": documentID}})

	var count struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.do(ctx, http.MethodPost, q.collectionPath("/points/count"), map[string]any{"filter": f, "exact": true}, &count); err != nil {
		return 0, err
	}
	if count.Result.Count == 0 {
		return 0, nil
	}
	if err := q.do(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), map[string]any{"filter": f}, nil); err != nil {
		return 0, err
	}
	return count.Result.Count, nil
}

func (q *QdrantIndex) collectionPath(suffix string) string {
	return q.baseURL + "/collections/" + url.PathEscape(q.collection) + suffix
}

func (q *QdrantIndex) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errQdrantNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("qdrant http status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// pointID maps a record id onto the UUID space Qdrant requires.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func userFilter(userID string) qdrantFilter {
	return qdrantFilter{Must: []qdrantCondition{{Key: "user_id", Match: map[string]any{"value": userID}}}}
}

func payloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}
