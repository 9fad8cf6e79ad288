package documents

import "time"

// Document is the metadata record of an ingested document. Its chunks live
// in the vector index under the same ID.
type Document struct {
	ID         string
	UserID     string
	Name       string
	SourceURL  string
	StorageKey string
	MimeType   string
	SizeBytes  int64
	ChunkCount int
	CreatedAt  time.Time
}
