package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geulsup/garden-gateway/internal/adapters/http/handlers"
	"github.com/geulsup/garden-gateway/internal/adapters/http/middleware"
	"github.com/geulsup/garden-gateway/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for business requests. Monthly
// summaries over long diaries routinely take tens of seconds upstream.
const DefaultRequestTimeout = 60 * time.Second

// DefaultMaxRequestSize caps business request bodies.
const DefaultMaxRequestSize int64 = 10 << 20

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// AppName names the service in traces.
	AppName string

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// GardenHandler handles diary analysis and monthly summaries.
	GardenHandler *handlers.GardenHandler

	// DailyQuoteHandler handles the daily greeting.
	DailyQuoteHandler *handlers.DailyQuoteHandler

	// RateLimiter limits business requests per client. Nil disables it.
	RateLimiter *middleware.RateLimiter

	// AllowedOrigins lists the CORS origins. Empty allows any origin.
	AllowedOrigins []string

	// Timeout is the deadline of business requests.
	Timeout time.Duration

	// MaxRequestSize caps business request bodies in bytes.
	MaxRequestSize int64
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry - tracing and metrics
//  5. Logging - request logging (skips health endpoints)
//  6. CORS - answers preflights, including those for unknown routes
//  7. Rate limit - per client, skips health endpoints and preflights
//
// Routes:
//   - GET /: plain-text banner
//   - POST /analyze, POST /monthly-summary, GET /api/daily-quote: business
//     routes with a deadline and a body limit
//   - /-/ (internal): health endpoints, no timeout for health checks
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
	)
	engine.Use(telemetry.Middleware(cfg.AppName)...)
	engine.Use(
		middleware.Logging(),
		middleware.CORS(cfg.AllowedOrigins),
	)

	if cfg.RateLimiter != nil {
		engine.Use(cfg.RateLimiter.Middleware())
	}

	engine.NoRoute(notFound)
	engine.NoMethod(notFound)

	engine.GET("/", handlers.Root)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	api := engine.Group("")
	api.Use(
		middleware.SimpleTimeout(orDefault(cfg.Timeout, DefaultRequestTimeout)),
		middleware.BodyLimit(orDefault(cfg.MaxRequestSize, DefaultMaxRequestSize)),
	)

	setupAPIRoutes(api, cfg)
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.GardenHandler != nil {
		cfg.GardenHandler.RegisterGardenRoutes(rg)
	}

	if cfg.DailyQuoteHandler != nil {
		cfg.DailyQuoteHandler.RegisterDailyQuoteRoutes(rg)
	}
}

func orDefault[T time.Duration | int64](v, def T) T {
	if v <= 0 {
		return def
	}

	return v
}
