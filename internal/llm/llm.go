package llm

import (
	"context"
	"errors"
)

// Roles used in chat-completion messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat-completion message.
type Message struct {
	Role    string
	Content string
}

// Request describes a single completion call. Zero Temperature and
// MaxTokens leave the provider defaults in place.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Completer abstracts hosted chat-completion providers.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned by the placeholder completer.
var ErrNotConfigured = errors.New("LLM not configured")

// PlaceholderCompleter stands in when no provider key is configured.
type PlaceholderCompleter struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderCompleter) Complete(context.Context, Request) (string, error) {
	return "", ErrNotConfigured
}
