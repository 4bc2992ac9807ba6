// Package api provides the HTTP API for the TenantPulse server.
package api

import (
	"fmt"
	"net/http"

	"github.com/avencora/tenantpulse/internal/api/handlers"
	"github.com/avencora/tenantpulse/internal/api/middleware"
	"github.com/avencora/tenantpulse/internal/config"
	"github.com/avencora/tenantpulse/internal/db"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/avencora/tenantpulse/docs/api"
)

// Config holds configuration for the API router.
type Config struct {
	// Environment controls production-only safety checks.
	Environment config.Environment
	// AllowedOrigins for CORS. Empty means all origins allowed in dev mode.
	AllowedOrigins []string
	// RateLimit is the limiter format string, e.g. "100-M".
	RateLimit string
	// APIToken is the static bearer token for /api/v1. Empty disables auth,
	// which is refused in production.
	APIToken string
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment: config.EnvDevelopment,
		RateLimit:   "100-M",
		Version:     "dev",
		Commit:      "unknown",
		BuildDate:   "unknown",
	}
}

// Dependencies carries the wired services the router exposes.
type Dependencies struct {
	DB       *db.DB
	Queue    handlers.JobEnqueuer
	Comparer handlers.BenchmarkComparer
	Metrics  http.Handler
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Dependencies, logger zerolog.Logger) (*Router, error) {
	if cfg.Environment == config.EnvProduction && cfg.APIToken == "" {
		return nil, fmt.Errorf("API_TOKEN must be set in production; refusing to start with open API")
	}

	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	// Global middleware
	r.Engine.Use(gin.Recovery())
	r.Engine.Use(middleware.RequestLogger(logger))
	r.Engine.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Environment))

	// Rate limiting
	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	r.Engine.Use(rateLimiter)

	// Health check endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(deps.DB, logger)
	healthHandler.RegisterPublicRoutes(r.Engine)

	// Version endpoint (no auth required)
	versionHandler := handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate, logger)
	versionHandler.RegisterPublicRoutes(r.Engine)

	// Prometheus metrics endpoint (no auth required)
	if deps.Metrics != nil {
		r.Engine.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// Swagger API documentation (no auth required)
	r.Engine.GET("/api/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL("/api/docs/doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))

	// API v1 routes (token required outside development)
	apiV1 := r.Engine.Group("/api/v1")
	apiV1.Use(middleware.TokenAuth(cfg.APIToken, logger))

	handlers.NewTenantsHandler(deps.DB, logger).RegisterRoutes(apiV1)
	handlers.NewScoresHandler(deps.DB, logger).RegisterRoutes(apiV1)
	handlers.NewUsageHandler(deps.DB, logger).RegisterRoutes(apiV1)
	handlers.NewBenchmarksHandler(deps.DB, deps.Comparer, logger).RegisterRoutes(apiV1)
	handlers.NewRecalculateHandler(deps.DB, deps.Queue, logger).RegisterRoutes(apiV1)
	handlers.NewJobQueueHandler(deps.DB, logger).RegisterRoutes(apiV1)

	return r, nil
}
