package documents

import "errors"

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrVectorDelete means the chunks could not be removed; metadata is kept
	// so the delete can be retried.
	ErrVectorDelete = errors.New("document vectors delete failed")
)
