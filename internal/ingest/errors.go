package ingest

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported document type")
	ErrExtraction      = errors.New("text extraction failed")
	ErrEmptyDocument   = errors.New("document contains no text")
	ErrStorage         = errors.New("raw document storage failed")
	ErrEmbedding       = errors.New("embedding failed")
	ErrIndex           = errors.New("vector index write failed")
	ErrMetadata        = errors.New("document metadata write failed")
	ErrFetch           = errors.New("document download failed")
	ErrTooLarge        = errors.New("document too large")
)
