package chat

import "time"

// MessageResponse is the outward-facing representation of a chat message.
type MessageResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Sources   []string  `json:"sources"`
	CreatedAt time.Time `json:"createdAt"`
}

func toResponse(msg Message) MessageResponse {
	sources := msg.Sources
	if sources == nil {
		sources = []string{}
	}
	return MessageResponse{
		ID:        msg.ID,
		Role:      msg.Role,
		Message:   msg.Text,
		Sources:   sources,
		CreatedAt: msg.CreatedAt,
	}
}
