package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"docqa-backend/internal/chat"
	"docqa-backend/internal/chunker"
	"docqa-backend/internal/documents"
	"docqa-backend/internal/embedding"
	"docqa-backend/internal/extract"
	"docqa-backend/internal/ingest"
	"docqa-backend/internal/llm"
	"docqa-backend/internal/llm/openrouter"
	"docqa-backend/internal/retrieval"
	"docqa-backend/internal/shared/config"
	"docqa-backend/internal/shared/server"
	"docqa-backend/internal/shared/server/middleware"
	"docqa-backend/internal/shared/storage/db"
	"docqa-backend/internal/shared/storage/object"
	localstore "docqa-backend/internal/shared/storage/object/local"
	s3store "docqa-backend/internal/shared/storage/object/s3"
	"docqa-backend/internal/vectorindex"
)

const (
	cohereDefaultDim = 1024
	openAIDefaultDim = 1536
	redisPingTimeout = 2 * time.Second
)

// App holds shared dependencies and the wired router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Redis    *redis.Client
	Embedder embedding.Embedder
	Index    vectorindex.Index
	LLM      llm.Completer

	DocumentsRepo    documents.Repo
	ChatRepo         chat.Repo
	DocumentsService *documents.Service
	ChatService      *chat.Service
	Pipeline         *ingest.Pipeline
	Fetcher          *ingest.Fetcher
	RetrievalService *retrieval.Service

	IngestHandler    *ingest.Handler
	RetrievalHandler *retrieval.Handler
	DocumentsHandler *documents.Handler
	ChatHandler      *chat.Handler
}

// Build prepares shared dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
	}

	if err := buildEmbedder(ctx, app); err != nil {
		return nil, err
	}
	if err := buildIndex(ctx, app); err != nil {
		return nil, err
	}
	if err := buildLLM(app); err != nil {
		return nil, err
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		DB:               app.DB,
		IngestHandler:    app.IngestHandler,
		RetrievalHandler: app.RetrievalHandler,
		DocumentsHandler: app.DocumentsHandler,
		ChatHandler:      app.ChatHandler,
		RateLimiter:      middleware.NewRateLimiter(nil),
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			log.Printf("bootstrap: migrations failed; using in-memory repositories: %v", err)
			return nil, nil
		}
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:   cfg.AWSRegion,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			KMSKeyID: cfg.SSEKMSKeyID,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildEmbedder picks the provider and wraps it with the Redis cache when
// REDIS_ADDR is set. It also settles the embedding dimension used by the
// vector index.
func buildEmbedder(ctx context.Context, app *App) error {
	cfg := &app.Config
	provider := cfg.EmbeddingProvider
	explicit := provider != ""
	if provider == "" {
		switch {
		case strings.TrimSpace(cfg.CohereAPIKey) != "":
			provider = "cohere"
		case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
			provider = "openai"
		default:
			provider = "hash"
		}
		cfg.EmbeddingProvider = provider
	}

	var base embedding.Embedder
	switch provider {
	case "cohere":
		client, err := embedding.NewCohereClient(embedding.CohereConfig{
			APIKey:  cfg.CohereAPIKey,
			Model:   cfg.EmbeddingModel,
			Timeout: cfg.EmbeddingTimeout,
		})
		if err != nil {
			return err
		}
		if cfg.EmbeddingDim <= 0 {
			cfg.EmbeddingDim = cohereDefaultDim
		}
		base = client
	case "openai":
		client, err := embedding.NewOpenAIClient(embedding.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.EmbeddingModel,
			BaseURL:    cfg.OpenAIBaseURL,
			Dimensions: cfg.EmbeddingDim,
			Timeout:    cfg.EmbeddingTimeout,
		})
		if err != nil {
			return err
		}
		if cfg.EmbeddingDim <= 0 {
			cfg.EmbeddingDim = openAIDefaultDim
		}
		base = client
	default:
		if !explicit && !isDevLike(cfg.Env) {
			return errors.New("COHERE_API_KEY or OPENAI_API_KEY is required (set EMBEDDING_PROVIDER=hash to opt out)")
		}
		hash := embedding.NewHashEmbedder(cfg.EmbeddingDim)
		cfg.EmbeddingDim = hash.Dim
		base = hash
	}

	app.Embedder = base
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis unreachable; embedding cache disabled: %v", err)
			return nil
		}
		return fmt.Errorf("redis ping: %w", err)
	}
	app.Redis = client
	app.Embedder = embedding.NewCachedEmbedder(base, client, cfg.EmbeddingCacheTTL)
	return nil
}

func buildIndex(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.VectorBackend {
	case "pgvector":
		if app.DB != nil {
			app.Index = &vectorindex.PGVectorIndex{DB: app.DB, Dim: cfg.EmbeddingDim}
			return nil
		}
		if !isDevLike(cfg.Env) {
			return errors.New("VECTOR_BACKEND=pgvector requires a database")
		}
		log.Printf("bootstrap: no database for pgvector; using in-memory vector index")
	case "qdrant":
		idx, err := vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
			Dim:        cfg.EmbeddingDim,
		})
		if err == nil {
			err = idx.EnsureCollection(ctx, cfg.EmbeddingDim)
		}
		if err == nil {
			app.Index = idx
			return nil
		}
		if !isDevLike(cfg.Env) {
			return fmt.Errorf("qdrant: %w", err)
		}
		log.Printf("bootstrap: qdrant unavailable; using in-memory vector index: %v", err)
	}
	app.Index = vectorindex.NewMemoryIndex(cfg.EmbeddingDim)
	return nil
}

func buildLLM(app *App) error {
	cfg := app.Config
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		if !isDevLike(cfg.Env) {
			return errors.New("OPENROUTER_API_KEY is required")
		}
		log.Printf("bootstrap: LLM key empty; answers will use the placeholder completer")
		app.LLM = llm.PlaceholderCompleter{}
		return nil
	}
	client, err := openrouter.NewClient(openrouter.Config{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
		AppName: "docqa",
	})
	if err != nil {
		return err
	}
	app.LLM = client
	return nil
}

func buildServices(app *App) error {
	cfg := app.Config

	var docRepo documents.Repo
	var chatRepo chat.Repo
	if app.DB != nil {
		docRepo = &documents.PGRepo{DB: app.DB}
		chatRepo = &chat.PGRepo{DB: app.DB}
	} else {
		docRepo = documents.NewMemoryRepo()
		chatRepo = chat.NewMemoryRepo()
	}

	pipeline := &ingest.Pipeline{
		Extract:     extract.TextFromBytes,
		Chunker:     chunker.New(cfg.ChunkSize),
		Embedder:    app.Embedder,
		Index:       app.Index,
		Documents:   docRepo,
		Store:       app.Store,
		Concurrency: cfg.IngestConcurrency,
		BatchSize:   cfg.UpsertBatchSize,
	}
	fetcher := ingest.NewFetcher(cfg.FetchTimeout)

	chatSvc := &chat.Service{Repo: chatRepo}
	retrievalSvc := &retrieval.Service{
		Embedder:        app.Embedder,
		Index:           app.Index,
		LLM:             app.LLM,
		History:         chatSvc,
		DefaultModel:    cfg.LLMModel,
		DefaultTopK:     cfg.DefaultTopK,
		MaxTopK:         cfg.MaxTopK,
		MaxContextChars: cfg.MaxContextChars,
	}

	docSvc := &documents.Service{Repo: docRepo, Index: app.Index, Store: app.Store}

	app.DocumentsRepo = docRepo
	app.ChatRepo = chatRepo
	app.DocumentsService = docSvc
	app.ChatService = chatSvc
	app.Pipeline = pipeline
	app.Fetcher = fetcher
	app.RetrievalService = retrievalSvc
	app.IngestHandler = ingest.NewHandler(pipeline, fetcher)
	app.RetrievalHandler = retrieval.NewHandler(retrievalSvc)
	app.DocumentsHandler = documents.NewHandler(docSvc)
	app.ChatHandler = chat.NewHandler(chatSvc)

	if app.IngestHandler == nil || app.RetrievalHandler == nil {
		return errors.New("failed to initialize handlers")
	}

	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
