package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"docqa-backend/internal/shared/storage/db"
)

const (
	upsertEmbeddingSQL = `INSERT INTO document_embeddings (id, document_id, user_id, chunk_index, content, embedding, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    document_id = EXCLUDED.document_id,
    user_id = EXCLUDED.user_id,
    chunk_index = EXCLUDED.chunk_index,
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    metadata = EXCLUDED.metadata`

	searchEmbeddingSQL = `SELECT id, document_id, user_id, chunk_index, content,
    COALESCE(metadata->>'documentName', ''), created_at, 1 - (embedding <=> $1) AS score
FROM document_embeddings
WHERE user_id = $2
ORDER BY embedding <=> $1, id
LIMIT $3`

	deleteEmbeddingsSQL = `DELETE FROM document_embeddings WHERE user_id = $1 AND document_id = $2`
)

// PGVectorIndex stores embeddings in Postgres with the pgvector extension.
type PGVectorIndex struct {
	DB  *sql.DB
	Dim int
}

type chunkMetadata struct {
	UserID       string `json:"userId"`
	DocumentID   string `json:"documentId"`
	DocumentName string `json:"documentName"`
	ChunkIndex   int    `json:"chunkIndex"`
	Source       string `json:"source"`
	Timestamp    string `json:"timestamp"`
}

// Upsert writes all records in a single transaction.
func (p *PGVectorIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records, p.Dim); err != nil {
		return err
	}
	return db.WithTx(ctx, p.DB, func(tx *sql.Tx) error {
		for _, r := range records {
			createdAt := r.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			meta, err := json.Marshal(chunkMetadata{
				UserID:       r.UserID,
				DocumentID:   r.DocumentID,
				DocumentName: r.DocumentName,
				ChunkIndex:   r.ChunkIndex,
				Source:       ShortDocumentTag(r.DocumentID),
				Timestamp:    createdAt.Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, upsertEmbeddingSQL,
				r.ID, r.DocumentID, r.UserID, r.ChunkIndex, r.Text,
				pgvector.NewVector(r.Vector), meta, createdAt,
			); err != nil {
				return fmt.Errorf("upsert embedding %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// Search ranks the user's chunks by cosine distance.
func (p *PGVectorIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if p.Dim > 0 && len(vector) != p.Dim {
		return nil, ErrDimensionMismatch
	}
	rows, err := p.DB.QueryContext(ctx, searchEmbeddingSQL, pgvector.NewVector(vector), filter.UserID, normalizeTopK(topK))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]Match, 0)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.UserID, &m.ChunkIndex, &m.Text, &m.DocumentName, &m.CreatedAt, &m.Score); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// DeleteByDocument removes the user's chunks for documentID.
func (p *PGVectorIndex) DeleteByDocument(ctx context.Context, filter Filter, documentID string) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	res, err := p.DB.ExecContext(ctx, deleteEmbeddingsSQL, filter.UserID, documentID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
