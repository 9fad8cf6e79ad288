// Package chat stores the per-user question and answer history.
package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted chat turn.
type Message struct {
	ID        string
	UserID    string
	Role      string
	Text      string
	Sources   []string
	CreatedAt time.Time
}
