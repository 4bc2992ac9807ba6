// Package main is the entrypoint for the TenantPulse server.
//
// @title           TenantPulse API
// @version         1.0
// @description     Tenant health scoring and peer benchmark engine for the Avencora compliance platform.
//
// @contact.name   Avencora Platform Team
// @contact.url    https://github.com/avencora/tenantpulse
//
// @host      localhost:8080
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Static API token authentication. Use format: Bearer <token>
//
// @tag.name Scores
// @tag.description Tenant health scores, history, and at-risk listings
// @tag.name Usage
// @tag.description Daily usage metric snapshots
// @tag.name Benchmarks
// @tag.description Anonymous peer benchmark comparisons
// @tag.name Jobs
// @tag.description Background job queue inspection and control
// @tag.name Health
// @tag.description Server health checks
// @tag.name Version
// @tag.description Server version information
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avencora/tenantpulse/internal/api"
	"github.com/avencora/tenantpulse/internal/benchmark"
	"github.com/avencora/tenantpulse/internal/config"
	"github.com/avencora/tenantpulse/internal/db"
	"github.com/avencora/tenantpulse/internal/events"
	"github.com/avencora/tenantpulse/internal/health"
	"github.com/avencora/tenantpulse/internal/jobs"
	"github.com/avencora/tenantpulse/internal/metrics"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/rs/zerolog"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	logger.Info().
		Str("version", Version).
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Msg("Starting TenantPulse server")

	// Load configuration
	cfg := config.LoadServerConfig()

	scoringCfg, err := config.LoadScoringConfig(cfg.ScoringConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load scoring configuration")
		return 1
	}

	// Connect to database
	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
		return 1
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
		return 1
	}

	// Prometheus instrumentation
	instr := metrics.NewInstrumentation()

	// Outbound event publisher
	var publisher events.Publisher = events.NoopPublisher{}
	var webhook *events.WebhookPublisher
	if cfg.WebhookURL != "" {
		webhook = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, logger)
		publisher = webhook
		logger.Info().Str("url", cfg.WebhookURL).Msg("webhook event delivery enabled")
	}

	// Metrics pipeline: raw sources -> reader -> collector
	tickets := metrics.StubTicketSource{}
	reader := metrics.NewReader(database, database, database, database, tickets, scoringCfg.WindowDays, logger)
	collector := metrics.NewCollector(reader, database, logger)

	// Health score calculator
	calculator := health.NewCalculator(database, database, database, database, tickets, database, scoringCfg, publisher, logger)

	// Benchmark aggregation and lookup share one value resolver
	resolver := health.NewValueResolver(database, reader, scoringCfg)
	aggregator := benchmark.NewAggregator(database, resolver, scoringCfg.MinPeerCount, instr, publisher, logger)
	lookup := benchmark.NewLookup(database, resolver, scoringCfg.MinPeerCount)

	// Job queue and handlers
	queueCfg := jobs.DefaultQueueConfig()
	queueCfg.WorkerCount = cfg.WorkerCount
	queueCfg.JobRetentionDays = cfg.JobRetentionDays
	queue := jobs.NewQueue(database, queueCfg, instr, logger)

	runner := jobs.NewRunner(database, database, collector, calculator, scoringCfg.InterTenantDelay, instr, logger)
	queue.RegisterHandler(models.JobTypeScoreTenant, jobs.NewScoreTenantHandler(runner))
	queue.RegisterHandler(models.JobTypeScoreAllTenants, jobs.NewScoreAllTenantsHandler(runner))
	queue.RegisterHandler(models.JobTypeBenchmarkNightly, jobs.NewBenchmarkNightlyHandler(aggregator))

	if err := queue.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start job queue")
		return 1
	}
	defer queue.Stop()

	// Nightly schedules
	scheduler, err := benchmark.NewScheduler(database, cfg.BenchmarkCron, cfg.ScoringCron, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize scheduler")
		return 1
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Build API router
	routerCfg := api.Config{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSOrigins,
		RateLimit:      cfg.RateLimit,
		APIToken:       cfg.APIToken,
		Version:        Version,
		Commit:         Commit,
		BuildDate:      BuildDate,
	}

	router, err := api.NewRouter(routerCfg, api.Dependencies{
		DB:       database,
		Queue:    queue,
		Comparer: lookup,
		Metrics:  instr.Handler(),
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	// Flush any in-flight webhook deliveries
	if webhook != nil {
		webhook.Close()
	}

	logger.Info().Msg("Server stopped gracefully")
	return 0
}
