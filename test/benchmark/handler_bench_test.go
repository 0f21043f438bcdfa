package benchmark

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpadapter "github.com/geulsup/garden-gateway/internal/adapters/http"
	"github.com/geulsup/garden-gateway/internal/adapters/http/handlers"
	"github.com/geulsup/garden-gateway/internal/app"
	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
}

// createGinContext creates a Gin context for handler testing.
func createGinContext(w http.ResponseWriter, r *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = r
	return c
}

// setupHealthHandler creates a HealthHandler with a minimal registry for benchmarking.
func setupHealthHandler() *handlers.HealthHandler {
	registry := ports.NewHealthRegistry()
	buildInfo := handlers.NewBuildInfo("1.0.0", "abc123", "2026-01-01T00:00:00Z")
	return handlers.NewHealthHandler(registry, buildInfo)
}

// setupQuoteCache returns a cache whose entry is already fresh for the
// fixed clock, so every read takes the fast path.
func setupQuoteCache(b *testing.B) *app.DailyQuoteCache {
	b.Helper()

	cache := app.NewDailyQuoteCache(app.DailyQuoteCacheConfig{
		Client: staticCompletion("1. 맑은 아침이에요.\n2. 물 주기 좋은 날.\n3. 꽃이 피었어요."),
		Clock:  fixedClock(time.Date(2026, 4, 5, 7, 30, 0, 0, app.SeoulLocation())),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	cache.EnsureFresh(context.Background())

	return cache
}

// BenchmarkLivenessHandler measures the performance of the liveness endpoint.
// Orchestrators hit this on a short interval.
func BenchmarkLivenessHandler(b *testing.B) {
	handler := setupHealthHandler()
	req := httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		c := createGinContext(w, req)
		handler.Liveness(c)
	}
}

// BenchmarkReadinessHandler_WithChecks measures readiness with the language
// model registered as an optional dependency.
func BenchmarkReadinessHandler_WithChecks(b *testing.B) {
	registry := ports.NewHealthRegistry()
	_ = registry.RegisterOptional(&simpleHealthChecker{name: "openai"})

	buildInfo := handlers.NewBuildInfo("1.0.0", "abc123", "2026-01-01T00:00:00Z")
	handler := handlers.NewHealthHandler(registry, buildInfo)
	req := httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		c := createGinContext(w, req)
		handler.Readiness(c)
	}
}

// BenchmarkDailyQuote_FastPath measures a same-day read of the cache.
func BenchmarkDailyQuote_FastPath(b *testing.B) {
	cache := setupQuoteCache(b)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = cache.Quote(ctx)
	}
}

// BenchmarkDailyQuote_FastPathParallel measures same-day reads under contention.
func BenchmarkDailyQuote_FastPathParallel(b *testing.B) {
	cache := setupQuoteCache(b)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			_ = cache.Quote(ctx)
		}
	})
}

// BenchmarkDailyQuoteHandler measures the handler on a warm cache.
func BenchmarkDailyQuoteHandler(b *testing.B) {
	handler := handlers.NewDailyQuoteHandler(setupQuoteCache(b))
	req := httptest.NewRequest(http.MethodGet, "/api/daily-quote", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		c := createGinContext(w, req)
		handler.GetDailyQuote(c)
	}
}

// BenchmarkParseLines measures cleaning a five line model reply.
func BenchmarkParseLines(b *testing.B) {
	raw := "1. 봄비가 정원을 적셔요.\n2) 새싹이 인사해요.\n\n- 햇살이 따뜻해요.\n• 바람이 살랑여요.\n오늘도 평안하길."

	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = app.ParseLines(raw)
	}
}

// BenchmarkMiddlewareChain_Full measures the production middleware chain
// in front of the daily quote endpoint.
func BenchmarkMiddlewareChain_Full(b *testing.B) {
	router := gin.New()
	httpadapter.SetupRouter(router, httpadapter.RouterConfig{
		AppName:           "garden-gateway",
		HealthHandler:     setupHealthHandler(),
		GardenHandler:     handlers.NewGardenHandler(app.NewGardenService(app.GardenServiceConfig{Client: staticCompletion("{}")})),
		DailyQuoteHandler: handlers.NewDailyQuoteHandler(setupQuoteCache(b)),
		AllowedOrigins:    []string{"https://geulsup.app"},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/daily-quote", http.NoBody)
	req.Header.Set("Origin", "https://geulsup.app")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}

// simpleHealthChecker is a minimal health checker for benchmarking.
type simpleHealthChecker struct {
	name string
}

func (s *simpleHealthChecker) Name() string {
	return s.name
}

func (s *simpleHealthChecker) Check(_ context.Context) error {
	return nil
}

// staticCompletion always answers with the same text.
type staticCompletion string

func (s staticCompletion) Complete(_ context.Context, _ domain.CompletionRequest) (string, error) {
	return string(s), nil
}

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }
