// Package embedding turns text into fixed-length vectors. Ingestion and
// retrieval must share one configured Embedder so that document and query
// vectors live in the same space.
package embedding

import (
	"context"
	"errors"
	"time"
)

// Embedder converts a string into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding space (provider and model name).
	Model() string
}

// InputType tells providers that distinguish them whether the text is a
// document chunk or a search question.
type InputType string

const (
	InputDocument InputType = "search_document"
	InputQuery    InputType = "search_query"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrEmptyEmbedding is returned when a provider answers without a vector.
	ErrEmptyEmbedding = errors.New("embedding response empty")
	// ErrEmptyText is returned for blank inputs; providers reject them anyway.
	ErrEmptyText = errors.New("embedding input empty")
)

type inputTypeKey struct{}

// WithInputType marks ctx so providers embed the text as the given kind.
func WithInputType(ctx context.Context, t InputType) context.Context {
	return context.WithValue(ctx, inputTypeKey{}, t)
}

// InputTypeFromContext returns the input type set on ctx, defaulting to
// InputDocument.
func InputTypeFromContext(ctx context.Context) InputType {
	if t, ok := ctx.Value(inputTypeKey{}).(InputType); ok && t != "" {
		return t
	}
	return InputDocument
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}
