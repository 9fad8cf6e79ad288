package server

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/chat"
	"docqa-backend/internal/documents"
	"docqa-backend/internal/ingest"
	"docqa-backend/internal/retrieval"
	"docqa-backend/internal/shared/config"
	"docqa-backend/internal/shared/metrics"
	"docqa-backend/internal/shared/server/middleware"
	"docqa-backend/internal/shared/server/respond"
	"docqa-backend/internal/shared/storage/db"
	"docqa-backend/internal/shared/telemetry"
)

const (
	apiPrefix   = "/api/v1"
	healthPath  = apiPrefix + "/health"
	metricsPath = "/metrics"

	rateGroupIngest  = "INGEST"
	rateGroupQuery   = "QUERY"
	rateGroupDefault = "DEFAULT"
)

// RouterDeps carries the handlers mounted under /api/v1. Nil handlers are skipped.
type RouterDeps struct {
	Config           config.Config
	DB               *sql.DB
	IngestHandler    *ingest.Handler
	RetrievalHandler *retrieval.Handler
	DocumentsHandler *documents.Handler
	ChatHandler      *chat.Handler
	RateLimiter      *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(healthPath, metricsPath),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rateLimitRules(deps.Config.RateLimits),
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.RateLimiter,
		}),
	)

	r.GET(metricsPath, metrics.Handler())

	api := r.Group(apiPrefix)
	api.GET("/health", healthHandler(deps.DB))
	registerMeRoutes(api)

	if deps.IngestHandler != nil {
		deps.IngestHandler.RegisterRoutes(api)
	}
	if deps.RetrievalHandler != nil {
		deps.RetrievalHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}

	return r
}

func healthHandler(database *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context(), database, 2*time.Second); err != nil {
			telemetry.Warn("health.db_unreachable", map[string]any{"error": telemetry.ErrString(err)})
			respond.JSON(c, http.StatusServiceUnavailable, gin.H{"ok": false, "db": "unreachable"})
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	}
}

// rateLimitRules returns token bucket rules keyed by route group, with
// configured overrides applied on top of the defaults.
func rateLimitRules(overrides map[string]config.RateLimitRule) map[string]middleware.RateLimitRule {
	rules := map[string]middleware.RateLimitRule{
		rateGroupIngest:  {Rate: 0.2, Burst: 5},
		rateGroupQuery:   {Rate: 1, Burst: 10},
		rateGroupDefault: {Rate: 5, Burst: 30},
	}
	for group, rule := range overrides {
		rules[group] = middleware.RateLimitRule{Rate: rule.Rate, Burst: rule.Burst}
	}
	return rules
}

func rateGroupFor(c *gin.Context) string {
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	switch {
	case path == healthPath || path == metricsPath:
		return "NONE"
	case strings.HasSuffix(path, "/ingest"):
		return rateGroupIngest
	case strings.HasSuffix(path, "/query"), strings.HasSuffix(path, "/search"):
		return rateGroupQuery
	default:
		return rateGroupDefault
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
