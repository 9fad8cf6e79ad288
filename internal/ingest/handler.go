package ingest

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/shared/server/middleware"
	"docqa-backend/internal/shared/server/respond"
)

// Handler wires the ingestion endpoint to the pipeline.
type Handler struct {
	Pipeline *Pipeline
	Fetcher  *Fetcher
}

// NewHandler constructs a Handler.
func NewHandler(p *Pipeline, f *Fetcher) *Handler {
	return &Handler{Pipeline: p, Fetcher: f}
}

// RegisterRoutes attaches the ingest route to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/ingest", h.ingest)
}

type ingestJSONRequest struct {
	FileURL      string `json:"fileUrl"`
	DocumentName string `json:"documentName"`
	UserID       string `json:"userId"`
}

type ingestResponse struct {
	DocumentID string `json:"documentId"`
	ChunkCount int    `json:"chunkCount"`
}

func (h *Handler) ingest(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req Request
	var claimedUser string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxDocumentBytes+1<<20)
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
			return
		}
		if fileHeader.Size > MaxDocumentBytes {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 10MB", nil)
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		claimedUser = strings.TrimSpace(c.PostForm("userId"))
		req = Request{
			DocumentName: c.PostForm("documentName"),
			FileName:     fileHeader.Filename,
			MimeType:     fileHeader.Header.Get("Content-Type"),
			Data:         data,
		}
	} else {
		var body ingestJSONRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
		if strings.TrimSpace(body.FileURL) == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file or fileUrl is required", nil)
			return
		}
		if strings.TrimSpace(body.DocumentName) == "" {
			respond.Error(c, http.StatusBadRequest, "validation_error", "documentName is required", nil)
			return
		}
		claimedUser = strings.TrimSpace(body.UserID)
		if claimedUser != "" && claimedUser != userID {
			respond.Error(c, http.StatusForbidden, "forbidden", "userId does not match the authenticated user", nil)
			return
		}
		dl, err := h.Fetcher.Fetch(c.Request.Context(), body.FileURL)
		if err != nil {
			writeError(c, err)
			return
		}
		req = Request{
			DocumentName: body.DocumentName,
			FileName:     dl.FileName,
			MimeType:     dl.MimeType,
			Data:         dl.Data,
			SourceURL:    body.FileURL,
		}
	}

	if claimedUser != "" && claimedUser != userID {
		respond.Error(c, http.StatusForbidden, "forbidden", "userId does not match the authenticated user", nil)
		return
	}
	if strings.TrimSpace(req.DocumentName) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentName is required", nil)
		return
	}
	req.UserID = userID

	res, err := h.Pipeline.Ingest(c.Request.Context(), req)
	if res.DocumentID != "" {
		c.Set(middleware.DocumentIDKey, res.DocumentID)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(middleware.OutcomeKey, "ingested")
	respond.Created(c, ingestResponse{DocumentID: res.DocumentID, ChunkCount: res.ChunkCount})
}

func writeError(c *gin.Context, err error) {
	c.Set(middleware.OutcomeKey, "failed")
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 10MB", nil)
	case errors.Is(err, ErrUnsupportedType):
		respond.Error(c, http.StatusUnsupportedMediaType, "unsupported_type", "only PDF, DOCX and plain-text documents are supported", nil)
	case errors.Is(err, ErrExtraction):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", "could not extract text from the document", nil)
	case errors.Is(err, ErrEmptyDocument):
		respond.Error(c, http.StatusUnprocessableEntity, "empty_document", "the document contains no extractable text", nil)
	case errors.Is(err, ErrFetch):
		respond.Error(c, http.StatusBadGateway, "fetch_failed", "could not download fileUrl", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "ingest_failed", "failed to process document", nil)
	}
}
