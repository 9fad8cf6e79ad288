package documents

import (
	"context"
	"fmt"

	"docqa-backend/internal/shared/storage/object"
	"docqa-backend/internal/shared/telemetry"
	"docqa-backend/internal/vectorindex"
)

// Service contains business logic for documents.
type Service struct {
	Repo  Repo
	Index vectorindex.Index
	// Store is optional; when set, the raw upload is removed on delete.
	Store object.ObjectStore
}

// List returns the user's documents, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Get returns one of the user's documents.
func (s *Service) Get(ctx context.Context, userID, documentID string) (Document, error) {
	if userID == "" || documentID == "" {
		return Document{}, ErrInvalidInput
	}
	return s.Repo.GetByID(ctx, userID, documentID)
}

// Delete removes a document's vectors and then its metadata, returning the
// number of chunks removed. If the vectors cannot be removed the metadata
// stays so the caller can retry.
func (s *Service) Delete(ctx context.Context, userID, documentID string) (int, error) {
	doc, err := s.Get(ctx, userID, documentID)
	if err != nil {
		return 0, err
	}

	removed, err := s.Index.DeleteByDocument(ctx, vectorindex.Filter{UserID: userID}, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrVectorDelete, err)
	}

	if err := s.Repo.Delete(ctx, userID, doc.ID); err != nil {
		return removed, err
	}

	if s.Store != nil && doc.StorageKey != "" {
		if err := s.Store.Delete(ctx, doc.StorageKey); err != nil {
			telemetry.Warn("documents.object_delete_failed", map[string]any{
				"document_id": doc.ID,
				"user_id":     userID,
				"err":         err.Error(),
			})
		}
	}

	telemetry.Info("documents.deleted", map[string]any{
		"document_id": doc.ID,
		"user_id":     userID,
		"chunks":      removed,
	})
	return removed, nil
}
