package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryLimit bounds history reads when callers pass no limit.
const DefaultHistoryLimit = 50

// Service contains business logic for chat history.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

// History returns the user's recent messages, oldest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Message, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 || limit > 200 {
		limit = DefaultHistoryLimit
	}
	return s.Repo.ListByUser(ctx, userID, limit)
}

// Clear removes the user's history and reports how many messages were dropped.
func (s *Service) Clear(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrInvalidInput
	}
	return s.Repo.DeleteByUser(ctx, userID)
}

// RecordExchange appends a question and its answer to the user's history.
// The answer is stamped just after the question so the pair keeps its order.
func (s *Service) RecordExchange(ctx context.Context, userID, question, answer string, sources []string) error {
	if userID == "" {
		return ErrInvalidInput
	}
	now := s.now()
	msgs := []Message{
		{ID: uuid.NewString(), UserID: userID, Role: RoleUser, Text: question, CreatedAt: now},
		{ID: uuid.NewString(), UserID: userID, Role: RoleAssistant, Text: answer, Sources: sources, CreatedAt: now.Add(time.Millisecond)},
	}
	for _, msg := range msgs {
		if err := s.Repo.Append(ctx, msg); err != nil {
			return fmt.Errorf("append %s message: %w", msg.Role, err)
		}
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
