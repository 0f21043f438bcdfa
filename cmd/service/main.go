// Package main is the entry point for the garden gateway.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // zone database for Asia/Seoul in scratch images

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/geulsup/garden-gateway/internal/adapters/clients"
	"github.com/geulsup/garden-gateway/internal/adapters/clients/acl"
	"github.com/geulsup/garden-gateway/internal/adapters/http"
	"github.com/geulsup/garden-gateway/internal/adapters/http/handlers"
	"github.com/geulsup/garden-gateway/internal/adapters/http/middleware"
	"github.com/geulsup/garden-gateway/internal/app"
	"github.com/geulsup/garden-gateway/internal/platform/config"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
	"github.com/geulsup/garden-gateway/internal/platform/metrics"
	"github.com/geulsup/garden-gateway/internal/platform/telemetry"
	"github.com/geulsup/garden-gateway/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 1. Load .env for local runs; a missing file is normal in containers
	envErr := godotenv.Load()

	// 2. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 3. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 4. Initialize logging
	logger, logCloser := logging.Open(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}, os.Stdout)
	defer func() { _ = logCloser.Close() }()

	slog.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
		slog.Bool("dotenv_loaded", envErr == nil),
	)

	// 5. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	// 6. Garden metrics on the default Prometheus registry (/-/metrics)
	gardenMetrics, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	// 7. Create the instrumented transport and the OpenAI adapter (ACL pattern)
	transport, err := clients.New(&clients.Config{
		ServiceName: acl.ServiceName,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	openAIClient := acl.NewOpenAIClient(acl.OpenAIClientConfig{
		Client:  transport,
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Logger:  logger,
	})
	completions := app.NewMeteredCompletionClient(openAIClient, gardenMetrics)

	// 8. Create health registry. The language model is optional: without it
	// the daily quote still serves cached or fallback text.
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.RegisterOptional(openAIClient); err != nil {
		return fmt.Errorf("registering openai health check: %w", err)
	}

	// 9. Create application services
	gardenService := app.NewGardenService(app.GardenServiceConfig{
		Client:              completions,
		AnalysisTemperature: cfg.OpenAI.AnalysisTemperature,
		SummaryTemperature:  cfg.OpenAI.SummaryTemperature,
		MaxInputRunes:       cfg.Monthly.MaxInputRunes,
		QuotesPerVirtue:     cfg.Monthly.QuotesPerVirtue,
	})

	quoteCache := app.NewDailyQuoteCache(app.DailyQuoteCacheConfig{
		Client:         completions,
		Metrics:        gardenMetrics,
		Logger:         logger,
		RefreshTimeout: cfg.DailyQuote.RefreshTimeout,
		Temperature:    cfg.DailyQuote.Temperature,
		FallbackText:   cfg.DailyQuote.FallbackText,
	})

	// 10. Create handlers
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(healthRegistry, buildInfo)

	// 11. Create HTTP server; rejects unusable trusted proxies
	server, err := http.New(&cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(cfg.RateLimit)
	}

	// 12. Setup router with all middleware and routes
	http.SetupRouter(server.Engine(), http.RouterConfig{
		AppName:           cfg.App.Name,
		HealthHandler:     healthHandler,
		GardenHandler:     handlers.NewGardenHandler(gardenService),
		DailyQuoteHandler: handlers.NewDailyQuoteHandler(quoteCache),
		RateLimiter:       rateLimiter,
		AllowedOrigins:    cfg.CORS.AllowedOrigins,
		Timeout:           cfg.Server.RequestTimeout,
		MaxRequestSize:    cfg.Server.MaxRequestSize,
	})

	// 13. Start server (non-blocking)
	serverErr := server.Start()

	// 14. Wait for shutdown signal, then release resources in reverse order
	shutdownErr := waitForShutdown(ctx, logger, server, serverErr, cfg.Server.ShutdownTimeout)

	if rateLimiter != nil {
		rateLimiter.Close()
	}

	if err := telProvider.Shutdown(ctx); err != nil {
		logger.Error("telemetry shutdown error", slog.Any("error", err))
	}

	return shutdownErr
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then performs graceful shutdown of the HTTP server.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}
