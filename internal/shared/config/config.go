package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingDim      int
	EmbeddingTimeout  time.Duration
	CohereAPIKey      string
	OpenAIAPIKey      string
	OpenAIBaseURL     string

	RedisAddr         string
	RedisPassword     string
	EmbeddingCacheTTL time.Duration

	VectorBackend    string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	LLMTimeout   time.Duration
	FetchTimeout time.Duration

	ChunkSize         int
	IngestConcurrency int
	UpsertBatchSize   int
	DefaultTopK       int
	MaxTopK           int
	MaxContextChars   int

	// RateLimits overrides the built-in per-group rules when set.
	RateLimits map[string]RateLimitRule
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	openAIKey := getEnv("OPENAI_API_KEY", "")

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		Env:             env,
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		EmbeddingProvider: normalizeEmbeddingProvider(getEnv("EMBEDDING_PROVIDER", "")),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDim:      getEnvInt("EMBEDDING_DIM", 0),
		EmbeddingTimeout:  getEnvSeconds("EMBEDDING_TIMEOUT_SECONDS", 30*time.Second),
		CohereAPIKey:      getEnv("COHERE_API_KEY", ""),
		OpenAIAPIKey:      openAIKey,
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		EmbeddingCacheTTL: getEnvDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),

		VectorBackend:    normalizeVectorBackend(getEnv("VECTOR_BACKEND", ""), dbURL),
		QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "document_embeddings"),

		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMAPIKey:    getEnv("OPENROUTER_API_KEY", openAIKey),
		LLMModel:     getEnv("LLM_MODEL", "deepseek/deepseek-r1:free"),
		LLMTimeout:   getEnvSeconds("LLM_TIMEOUT_SECONDS", 120*time.Second),
		FetchTimeout: getEnvSeconds("FETCH_TIMEOUT_SECONDS", 30*time.Second),

		ChunkSize:         getEnvInt("CHUNK_SIZE", 1000),
		IngestConcurrency: getEnvInt("INGEST_CONCURRENCY", 4),
		UpsertBatchSize:   getEnvInt("UPSERT_BATCH_SIZE", 100),
		DefaultTopK:       getEnvInt("DEFAULT_TOP_K", 5),
		MaxTopK:           getEnvInt("MAX_TOP_K", 20),
		MaxContextChars:   getEnvInt("MAX_CONTEXT_CHARS", 24000),

		RateLimits: loadRateLimitsFromEnv(),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvSeconds(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid seconds: %q", key, raw)
		return def
	}
	return time.Duration(val) * time.Second
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config env %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeEmbeddingProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cohere":
		return "cohere"
	case "openai":
		return "openai"
	case "hash", "local":
		return "hash"
	default:
		return ""
	}
}

// normalizeVectorBackend defaults to pgvector when a database is configured.
func normalizeVectorBackend(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pgvector", "postgres":
		return "pgvector"
	case "qdrant":
		return "qdrant"
	case "memory":
		return "memory"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "pgvector"
	}
	return "memory"
}
