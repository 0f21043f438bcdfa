package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
	"github.com/geulsup/garden-gateway/internal/adapters/http/handlers"
	"github.com/geulsup/garden-gateway/internal/adapters/http/middleware"
	"github.com/geulsup/garden-gateway/internal/app"
	"github.com/geulsup/garden-gateway/internal/mocks"
	"github.com/geulsup/garden-gateway/internal/platform/config"
	"github.com/geulsup/garden-gateway/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig(host string, port int) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           host,
		Port:           port,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxRequestSize: 1 << 20,
	}
}

type routerFixture struct {
	engine   *gin.Engine
	client   *mocks.MockCompletionClient
	registry *mocks.MockHealthRegistry
}

func newRouterFixture(t *testing.T, mutate func(*RouterConfig)) *routerFixture {
	t.Helper()

	f := &routerFixture{
		engine:   gin.New(),
		client:   mocks.NewMockCompletionClient(t),
		registry: mocks.NewMockHealthRegistry(t),
	}

	cfg := RouterConfig{
		AppName:       "garden-gateway",
		HealthHandler: handlers.NewHealthHandler(f.registry, handlers.BuildInfo{Version: "test"}),
		GardenHandler: handlers.NewGardenHandler(app.NewGardenService(app.GardenServiceConfig{Client: f.client})),
		DailyQuoteHandler: handlers.NewDailyQuoteHandler(app.NewDailyQuoteCache(app.DailyQuoteCacheConfig{
			Client: f.client,
			Logger: discardLogger(),
		})),
		Timeout:        time.Second,
		MaxRequestSize: 64,
	}

	if mutate != nil {
		mutate(&cfg)
	}

	SetupRouter(f.engine, cfg)

	return f
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	return w
}

func TestAbortWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Request.Header.Set("X-Request-ID", "req-7")

	AbortWithErrorCode(c, dto.ErrorCodeRateLimited, "slow down")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.True(t, c.IsAborted())

	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, dto.ErrorCodeRateLimited, resp.Error.Code)
	assert.Equal(t, "slow down", resp.Error.Message)
	assert.Equal(t, "req-7", resp.TraceID)
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig("127.0.0.1", 8080)
	logger := discardLogger()

	srv, err := New(cfg, logger)
	require.NoError(t, err)

	require.NotNil(t, srv)
	assert.NotNil(t, srv.Engine())
	assert.Equal(t, cfg, srv.Config())
	assert.Equal(t, logger, srv.logger)
	assert.Equal(t, cfg.WriteTimeout, srv.httpServer.WriteTimeout)
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host         string
		port         int
		expectedAddr string
	}{
		{host: "localhost", port: 8000, expectedAddr: "localhost:8000"},
		{host: "0.0.0.0", port: 3000, expectedAddr: "0.0.0.0:3000"},
		{host: "127.0.0.1", port: 0, expectedAddr: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.expectedAddr, func(t *testing.T) {
			srv, err := New(testServerConfig(tt.host, tt.port), discardLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAddr, srv.Addr())
		})
	}
}

func TestServerNew_TrustedProxies(t *testing.T) {
	cfg := testServerConfig("127.0.0.1", 8080)
	cfg.TrustedProxies = []string{"10.0.0.0/8", "192.168.1.1"}

	srv, err := New(cfg, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, srv)

	cfg.TrustedProxies = []string{"lb.internal"}

	srv, err = New(cfg, discardLogger())
	require.Error(t, err)
	assert.Nil(t, srv)
	assert.Contains(t, err.Error(), "setting trusted proxies")
}

func TestServerStartShutdown(t *testing.T) {
	srv, err := New(testServerConfig("127.0.0.1", 0), discardLogger())
	require.NoError(t, err)
	srv.Engine().GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	errCh := srv.Start()

	time.Sleep(50 * time.Millisecond)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed")
}

func TestSetupRouter_Routes(t *testing.T) {
	f := newRouterFixture(t, nil)

	routes := make(map[string]bool)
	for _, r := range f.engine.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	for _, expected := range []string{
		"GET /",
		"POST /analyze",
		"POST /monthly-summary",
		"GET /api/daily-quote",
		"GET /-/live",
		"GET /-/ready",
		"GET /-/build",
		"GET /-/metrics",
	} {
		assert.True(t, routes[expected], "missing route: %s", expected)
	}
}

func TestSetupRouter_Root(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handlers.Banner, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSetupRouter_UnknownRoute(t *testing.T) {
	f := newRouterFixture(t, nil)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeNotFound, resp.Error.Code)
	assert.NotEmpty(t, resp.TraceID)
}

func TestSetupRouter_Preflight(t *testing.T) {
	f := newRouterFixture(t, func(cfg *RouterConfig) {
		cfg.AllowedOrigins = []string{"https://geulsup.app"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	req.Header.Set("Origin", "https://geulsup.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	w := f.do(req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://geulsup.app", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupRouter_BodyLimit(t *testing.T) {
	f := newRouterFixture(t, nil)

	body := `{"diaryText":"` + strings.Repeat("가", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := f.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSetupRouter_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		Burst:             1,
		IdleTTL:           time.Minute,
	})
	t.Cleanup(limiter.Close)

	f := newRouterFixture(t, func(cfg *RouterConfig) {
		cfg.RateLimiter = limiter
	})

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/-/live", nil)).Code)
}

func TestSetupRouter_DailyQuoteDegradesToFallback(t *testing.T) {
	f := newRouterFixture(t, nil)

	f.client.EXPECT().Complete(mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()
	f.registry.EXPECT().CheckAll(mock.Anything).Return(&ports.HealthResult{
		Status: ports.HealthStatusDegraded,
		Checks: map[string]*ports.CheckResult{
			"openai": {Status: ports.HealthStatusUnhealthy, Optional: true},
		},
	}).Once()

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/daily-quote", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.DailyQuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, app.DefaultFallbackQuote, resp.Quote)

	ready := f.do(httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"degraded"`)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, DefaultRequestTimeout, orDefault(0, DefaultRequestTimeout))
	assert.Equal(t, time.Second, orDefault(time.Second, DefaultRequestTimeout))
	assert.Equal(t, DefaultMaxRequestSize, orDefault(-1, DefaultMaxRequestSize))
}
