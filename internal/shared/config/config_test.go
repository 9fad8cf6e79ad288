package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("LLM_MODEL", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %s", cfg.Env)
	}
	if cfg.VectorBackend != "memory" {
		t.Fatalf("expected memory backend without database, got %s", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 1000 {
		t.Fatalf("expected chunk size 1000, got %d", cfg.ChunkSize)
	}
	if cfg.DefaultTopK != 5 {
		t.Fatalf("expected default topK 5, got %d", cfg.DefaultTopK)
	}
	if cfg.LLMModel != "deepseek/deepseek-r1:free" {
		t.Fatalf("unexpected default model %q", cfg.LLMModel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://localhost/docqa")
	t.Setenv("VECTOR_BACKEND", "")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("EMBEDDING_PROVIDER", "Cohere")
	t.Setenv("LLM_TIMEOUT_SECONDS", "15")
	t.Setenv("EMBEDDING_CACHE_TTL", "90m")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %s", cfg.Env)
	}
	if cfg.VectorBackend != "pgvector" {
		t.Fatalf("expected pgvector backend with database, got %s", cfg.VectorBackend)
	}
	if cfg.ChunkSize != 500 {
		t.Fatalf("expected chunk size 500, got %d", cfg.ChunkSize)
	}
	if cfg.EmbeddingProvider != "cohere" {
		t.Fatalf("expected cohere provider, got %s", cfg.EmbeddingProvider)
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Fatalf("expected 15s llm timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.EmbeddingCacheTTL != 90*time.Minute {
		t.Fatalf("expected 90m cache ttl, got %s", cfg.EmbeddingCacheTTL)
	}
}

func TestSplitAndTrim(t *testing.T) {
	t.Parallel()

	got := splitAndTrim(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", got)
	}
}
