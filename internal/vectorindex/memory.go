package vectorindex

import (
	"context"
	"slices"
	"sync"
)

// MemoryIndex keeps records in a map and scans them on search.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]Record
	dim     int
}

// NewMemoryIndex returns an empty index. dim <= 0 accepts any vector length.
func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{records: make(map[string]Record), dim: dim}
}

func (m *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecords(records, m.dim); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		m.records[r.ID] = r
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.dim > 0 && len(vector) != m.dim {
		return nil, ErrDimensionMismatch
	}

	m.mu.RLock()
	matches := make([]Match, 0)
	for _, r := range m.records {
		if r.UserID != filter.UserID {
			continue
		}
		hit := r
		hit.Vector = nil
		matches = append(matches, Match{Record: hit, Score: cosine(vector, r.Vector)})
	}
	m.mu.RUnlock()

	slices.SortFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if k := normalizeTopK(topK); len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, filter Filter, documentID string) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, r := range m.records {
		if r.UserID == filter.UserID && r.DocumentID == documentID {
			delete(m.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
