package chat

import "context"

// Repo defines persistence operations for chat messages.
type Repo interface {
	Append(ctx context.Context, msg Message) error
	// ListByUser returns the most recent limit messages, oldest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Message, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

func validMessage(msg Message) bool {
	if msg.ID == "" || msg.UserID == "" {
		return false
	}
	return msg.Role == RoleUser || msg.Role == RoleAssistant
}
