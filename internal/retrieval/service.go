// Package retrieval answers questions from a user's indexed documents.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docqa-backend/internal/chat"
	"docqa-backend/internal/embedding"
	"docqa-backend/internal/llm"
	"docqa-backend/internal/shared/metrics"
	"docqa-backend/internal/shared/telemetry"
	"docqa-backend/internal/vectorindex"
)

const (
	DefaultTopK            = 5
	DefaultMaxTopK         = 20
	DefaultMaxContextChars = 24000
	DefaultTemperature     = 0.1
	DefaultMaxTokens       = 1000
)

// HistoryRecorder stores one question and answer pair per call.
type HistoryRecorder interface {
	RecordExchange(ctx context.Context, userID, question, answer string, sources []string) error
}

var _ HistoryRecorder = (*chat.Service)(nil)

// Service runs the retrieval pipeline. History is optional.
type Service struct {
	Embedder embedding.Embedder
	Index    vectorindex.Index
	LLM      llm.Completer
	History  HistoryRecorder

	DefaultModel    string
	DefaultTopK     int
	MaxTopK         int
	MaxContextChars int
	Temperature     float64
	MaxTokens       int
}

// Query is one question from a user.
type Query struct {
	UserID        string
	Question      string
	TopK          int
	Model         string
	PriorMessages []Turn
}

// Answer is the result of a query. Failed answers carry FallbackAnswer.
type Answer struct {
	Text        string
	Sources     []string
	NoDocuments bool
	Failed      bool
}

// SearchResult is the raw similarity search output.
type SearchResult struct {
	Query       string
	Matches     []vectorindex.Match
	NoDocuments bool
}

// Answer embeds the question, retrieves the user's closest chunks and asks
// the model for a grounded answer. Only invalid input is returned as an
// error; later failures produce an Answer with Failed set.
func (s *Service) Answer(ctx context.Context, q Query) (Answer, error) {
	q.UserID = strings.TrimSpace(q.UserID)
	q.Question = strings.TrimSpace(q.Question)
	if q.UserID == "" {
		return Answer{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	if q.Question == "" {
		return Answer{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	start := time.Now()
	metrics.IncQuery()
	defer func() {
		metrics.ObserveQueryDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	ans, stage, err := s.answer(ctx, q)
	if err != nil {
		metrics.IncQueryFailed()
		telemetry.Error("retrieval.failed", map[string]any{
			"stage":   stage,
			"user_id": q.UserID,
			"err":     err.Error(),
		})
		ans = Answer{Text: FallbackAnswer, Sources: []string{}, Failed: true}
		s.record(ctx, q, ErrorAnswer, nil)
		return ans, nil
	}
	if ans.NoDocuments {
		metrics.IncQueryNoDocuments()
	}
	s.record(ctx, q, ans.Text, ans.Sources)
	telemetry.Info("retrieval.answered", map[string]any{
		"user_id":      q.UserID,
		"no_documents": ans.NoDocuments,
		"sources":      len(ans.Sources),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return ans, nil
}

func (s *Service) answer(ctx context.Context, q Query) (Answer, string, error) {
	vec, err := s.Embedder.Embed(embedding.WithInputType(ctx, embedding.InputQuery), q.Question)
	if err != nil {
		return Answer{}, "embed", err
	}

	matches, err := s.Index.Search(ctx, vec, s.topK(q.TopK), vectorindex.Filter{UserID: q.UserID})
	if err != nil {
		return Answer{}, "search", err
	}
	if len(matches) == 0 {
		return Answer{Text: NoDocumentsAnswer, Sources: []string{}, NoDocuments: true}, "search", nil
	}

	contextText, used := buildContext(matches, s.maxContextChars())
	sources := sourcesFor(used)

	model := strings.TrimSpace(q.Model)
	if model == "" {
		model = s.DefaultModel
	}
	out, err := s.LLM.Complete(ctx, llm.Request{
		Model:       model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildPrompt(contextText, q.Question, q.PriorMessages)}},
		Temperature: s.temperature(),
		MaxTokens:   s.maxTokens(),
	})
	if err != nil {
		return Answer{}, "complete", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		out = FallbackAnswer
	}
	return Answer{Text: out, Sources: sources}, "complete", nil
}

// Search returns the user's closest chunks without calling the model.
func (s *Service) Search(ctx context.Context, userID, question string, topK int) (SearchResult, error) {
	userID = strings.TrimSpace(userID)
	question = strings.TrimSpace(question)
	if userID == "" || question == "" {
		return SearchResult{}, fmt.Errorf("%w: userId and query are required", ErrInvalidInput)
	}
	vec, err := s.Embedder.Embed(embedding.WithInputType(ctx, embedding.InputQuery), question)
	if err != nil {
		return SearchResult{}, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.Index.Search(ctx, vec, s.topK(topK), vectorindex.Filter{UserID: userID})
	if err != nil {
		return SearchResult{}, fmt.Errorf("search index: %w", err)
	}
	return SearchResult{Query: question, Matches: matches, NoDocuments: len(matches) == 0}, nil
}

// record appends the question and the answer to the user's history. Failures
// are logged only.
func (s *Service) record(ctx context.Context, q Query, answer string, sources []string) {
	if s.History == nil {
		return
	}
	if err := s.History.RecordExchange(context.WithoutCancel(ctx), q.UserID, q.Question, answer, sources); err != nil {
		telemetry.Warn("retrieval.history_failed", map[string]any{
			"user_id": q.UserID,
			"err":     err.Error(),
		})
	}
}

func (s *Service) topK(requested int) int {
	k := requested
	if k <= 0 {
		k = s.DefaultTopK
	}
	if k <= 0 {
		k = DefaultTopK
	}
	maxK := s.MaxTopK
	if maxK <= 0 {
		maxK = DefaultMaxTopK
	}
	return min(k, maxK)
}

func (s *Service) maxContextChars() int {
	if s.MaxContextChars > 0 {
		return s.MaxContextChars
	}
	return DefaultMaxContextChars
}

func (s *Service) temperature() float64 {
	if s.Temperature > 0 {
		return s.Temperature
	}
	return DefaultTemperature
}

func (s *Service) maxTokens() int {
	if s.MaxTokens > 0 {
		return s.MaxTokens
	}
	return DefaultMaxTokens
}
