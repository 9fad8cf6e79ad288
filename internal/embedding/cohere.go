package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultCohereBaseURL = "https://api.cohere.com/v1"
	defaultCohereModel   = "embed-multilingual-v3.0"
)

// CohereConfig configures CohereClient.
type CohereConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// CohereClient calls the Cohere embed endpoint one text at a time.
type CohereClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewCohereClient validates cfg and applies defaults.
func NewCohereClient(cfg CohereConfig) (*CohereClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("COHERE_API_KEY is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultCohereModel
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultCohereBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CohereClient{
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   base + "/embed",
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type cohereRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type cohereResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Message    string      `json:"message"`
}

// Model returns the provider-qualified model name.
func (c *CohereClient) Model() string {
	return "cohere:" + c.model
}

// Embed returns the embedding for text. Errors are returned as-is; callers
// decide whether the enclosing step may retry.
func (c *CohereClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	payload, err := json.Marshal(cohereRequest{
		Texts:     []string{text},
		Model:     c.model,
		InputType: string(InputTypeFromContext(ctx)),
		Truncate:  "END",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("cohere request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed cohereResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("cohere http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("cohere response parse: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("cohere http status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return parsed.Embeddings[0], nil
}
