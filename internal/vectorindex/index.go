// Package vectorindex stores chunk embeddings and answers nearest-neighbor
// queries. Every search and delete is scoped by a mandatory user filter.
package vectorindex

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"
)

// DefaultTopK is used when a search asks for zero or fewer matches.
const DefaultTopK = 5

var (
	// ErrFilterRequired is returned when a search or delete has no user scope.
	ErrFilterRequired = errors.New("vector index filter requires a user id")
	// ErrInvalidRecord is returned for records missing an id, owner or vector.
	ErrInvalidRecord = errors.New("invalid vector record")
	// ErrDimensionMismatch is returned when a vector has the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Record is one indexed chunk.
type Record struct {
	ID           string
	DocumentID   string
	UserID       string
	ChunkIndex   int
	Text         string
	DocumentName string
	Vector       []float32
	CreatedAt    time.Time
}

// Match is a search hit. Record.Vector is not populated. Higher Score is more
// similar (cosine similarity).
type Match struct {
	Record
	Score float64
}

// Filter scopes an operation to one user's chunks.
type Filter struct {
	UserID string
}

// Validate rejects filters without a user id.
func (f Filter) Validate() error {
	if f.UserID == "" {
		return ErrFilterRequired
	}
	return nil
}

// Index is implemented by every vector backend.
type Index interface {
	// Upsert inserts or replaces records by ID.
	Upsert(ctx context.Context, records []Record) error
	// Search returns up to topK matches owned by filter.UserID, best first.
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error)
	// DeleteByDocument removes every chunk of documentID owned by filter.UserID.
	DeleteByDocument(ctx context.Context, filter Filter, documentID string) (int, error)
}

// RecordID returns the stable id of a document chunk.
func RecordID(documentID string, chunkIndex int) string {
	return documentID + "-" + strconv.Itoa(chunkIndex)
}

// ShortDocumentTag returns the source label shown to users for a document.
func ShortDocumentTag(documentID string) string {
	runes := []rune(documentID)
	if len(runes) > 8 {
		runes = runes[:8]
	}
	return "Document-" + string(runes)
}

func validateRecords(records []Record, dim int) error {
	for _, r := range records {
		if r.ID == "" || r.UserID == "" || r.DocumentID == "" || len(r.Vector) == 0 {
			return ErrInvalidRecord
		}
		if dim > 0 && len(r.Vector) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}

func normalizeTopK(topK int) int {
	if topK <= 0 {
		return DefaultTopK
	}
	return topK
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
