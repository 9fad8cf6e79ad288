package retrieval

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/shared/server/middleware"
	"docqa-backend/internal/shared/server/respond"
	"docqa-backend/internal/vectorindex"
)

// maxPriorMessages bounds the transcript a client can send with a question.
const maxPriorMessages = 20

// Handler wires the query and search endpoints to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches retrieval routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/query", h.query)
	rg.POST("/search", h.search)
}

type priorMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Question string `json:"question"`
	// Message is accepted as an alias of Question.
	Message       string         `json:"message"`
	UserID        string         `json:"userId"`
	TopK          int            `json:"topK"`
	ModelID       string         `json:"modelId"`
	PriorMessages []priorMessage `json:"priorMessages"`
}

type queryResponse struct {
	Answer      string   `json:"answer"`
	Sources     []string `json:"sources"`
	NoDocuments bool     `json:"noDocuments"`
	Failed      bool     `json:"failed"`
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
	TopK   int    `json:"topK"`
}

type searchMatch struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName,omitempty"`
	ChunkIndex   int     `json:"chunkIndex"`
	Text         string  `json:"text"`
	Source       string  `json:"source"`
	Score        float64 `json:"score"`
}

type searchResponse struct {
	Results     []searchMatch `json:"results"`
	Query       string        `json:"query"`
	NoDocuments bool          `json:"noDocuments"`
}

func (h *Handler) query(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = strings.TrimSpace(req.Message)
	}
	if question == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "question is required", nil)
		return
	}
	if !sameUser(c, req.UserID, userID) {
		return
	}
	if req.TopK < 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "topK must be positive", nil)
		return
	}

	prior := req.PriorMessages
	if len(prior) > maxPriorMessages {
		prior = prior[len(prior)-maxPriorMessages:]
	}
	turns := make([]Turn, 0, len(prior))
	for _, m := range prior {
		turns = append(turns, Turn{Role: m.Role, Text: m.Content})
	}

	ans, err := h.Svc.Answer(c.Request.Context(), Query{
		UserID:        userID,
		Question:      question,
		TopK:          req.TopK,
		Model:         req.ModelID,
		PriorMessages: turns,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to answer question", nil)
		return
	}

	switch {
	case ans.Failed:
		c.Set(middleware.OutcomeKey, "failed")
	case ans.NoDocuments:
		c.Set(middleware.OutcomeKey, "no_documents")
	default:
		c.Set(middleware.OutcomeKey, "answered")
	}
	respond.OK(c, queryResponse{
		Answer:      ans.Text,
		Sources:     ans.Sources,
		NoDocuments: ans.NoDocuments,
		Failed:      ans.Failed,
	})
}

func (h *Handler) search(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "query is required", nil)
		return
	}
	if !sameUser(c, req.UserID, userID) {
		return
	}

	res, err := h.Svc.Search(c.Request.Context(), userID, req.Query, req.TopK)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "search_failed", "failed to search documents", nil)
		return
	}

	results := make([]searchMatch, 0, len(res.Matches))
	for _, m := range res.Matches {
		results = append(results, searchMatch{
			ID:           m.ID,
			DocumentID:   m.DocumentID,
			DocumentName: m.DocumentName,
			ChunkIndex:   m.ChunkIndex,
			Text:         m.Text,
			Source:       vectorindex.ShortDocumentTag(m.DocumentID),
			Score:        m.Score,
		})
	}
	respond.OK(c, searchResponse{Results: results, Query: res.Query, NoDocuments: res.NoDocuments})
}

// sameUser rejects bodies that name a different user than the caller.
func sameUser(c *gin.Context, claimed, authenticated string) bool {
	claimed = strings.TrimSpace(claimed)
	if claimed == "" || claimed == authenticated {
		return true
	}
	respond.Error(c, http.StatusForbidden, "forbidden", "userId does not match the authenticated user", nil)
	return false
}
