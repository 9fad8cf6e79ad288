package documents

import (
	"time"

	"docqa-backend/internal/vectorindex"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID string    `json:"documentId"`
	Name       string    `json:"name"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	Source     string    `json:"source"`
	MimeType   string    `json:"mimeType"`
	SizeBytes  int64     `json:"sizeBytes"`
	ChunkCount int       `json:"chunkCount"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID: doc.ID,
		Name:       doc.Name,
		SourceURL:  doc.SourceURL,
		Source:     vectorindex.ShortDocumentTag(doc.ID),
		MimeType:   doc.MimeType,
		SizeBytes:  doc.SizeBytes,
		ChunkCount: doc.ChunkCount,
		UploadedAt: doc.CreatedAt,
	}
}
