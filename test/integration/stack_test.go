//go:build integration

package integration

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geulsup/garden-gateway/internal/adapters/clients"
	"github.com/geulsup/garden-gateway/internal/adapters/clients/acl"
	httpadapter "github.com/geulsup/garden-gateway/internal/adapters/http"
	"github.com/geulsup/garden-gateway/internal/adapters/http/handlers"
	"github.com/geulsup/garden-gateway/internal/app"
	"github.com/geulsup/garden-gateway/internal/platform/config"
	"github.com/geulsup/garden-gateway/internal/ports"
)

// fakeModel is an OpenAI-compatible test server whose replies can be
// changed while a test runs.
type fakeModel struct {
	server *httptest.Server

	mu      sync.Mutex
	status  int
	content string
	delay   time.Duration

	failNext    atomic.Int32 // chat calls left to answer with 502
	chatHits    atomic.Int32
	lastRequest atomic.Value // string: X-Request-ID of the latest chat call
}

func newFakeModel() *fakeModel {
	m := &fakeModel{status: http.StatusOK, content: "오늘도 맑음."}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))

	return m
}

func (m *fakeModel) reply(status int, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = status
	m.content = content
}

func (m *fakeModel) slow(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.delay = d
}

func (m *fakeModel) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	status, content, delay := m.status, m.content, m.delay
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/v1/models":
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`)
		return
	case "/v1/chat/completions":
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	m.chatHits.Add(1)
	m.lastRequest.Store(r.Header.Get("X-Request-ID"))
	_, _ = io.Copy(io.Discard, r.Body)

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if m.failNext.Add(-1) >= 0 {
		w.WriteHeader(http.StatusBadGateway)
		return
	}

	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"error":{"message":"model overloaded","type":"server_error"}}`)
		return
	}

	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-it",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	_, _ = w.Write(body)
}

func (m *fakeModel) close() {
	m.server.Close()
}

// stack is the gateway wired the way the service binary wires it, in
// front of a fake model.
type stack struct {
	model  *fakeModel
	server *httptest.Server
	quotes *app.DailyQuoteCache
}

// stackOptions tune the pieces tests care about.
type stackOptions struct {
	MaxAttempts    int
	MaxFailures    int
	RefreshTimeout time.Duration
	Clock          ports.Clock
	AllowedOrigins []string
}

func startStack(opts stackOptions) (*stack, error) {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}

	if opts.MaxFailures == 0 {
		opts.MaxFailures = 50
	}

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := newFakeModel()

	transport, err := clients.New(&clients.Config{
		ServiceName: acl.ServiceName,
		Timeout:     5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts:     opts.MaxAttempts,
			InitialInterval: 5 * time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
			Multiplier:      2.0,
		},
		Circuit: config.CircuitBreakerConfig{
			MaxFailures:   opts.MaxFailures,
			Timeout:       100 * time.Millisecond,
			HalfOpenLimit: 1,
		},
		Transport: config.TransportConfig{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     time.Second,
		},
		Logger: logger,
	})
	if err != nil {
		model.close()
		return nil, err
	}

	completions := acl.NewOpenAIClient(acl.OpenAIClientConfig{
		Client:  transport,
		APIKey:  "sk-integration",
		BaseURL: model.server.URL + "/v1",
		Logger:  logger,
	})

	registry := ports.NewHealthRegistry()
	if err := registry.RegisterOptional(completions); err != nil {
		model.close()
		return nil, err
	}

	quotes := app.NewDailyQuoteCache(app.DailyQuoteCacheConfig{
		Client:         completions,
		Clock:          opts.Clock,
		Logger:         logger,
		RefreshTimeout: opts.RefreshTimeout,
	})

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		AppName:           "garden-gateway",
		HealthHandler:     handlers.NewHealthHandler(registry, handlers.NewBuildInfo("it", "it", "it")),
		GardenHandler:     handlers.NewGardenHandler(app.NewGardenService(app.GardenServiceConfig{Client: completions})),
		DailyQuoteHandler: handlers.NewDailyQuoteHandler(quotes),
		AllowedOrigins:    opts.AllowedOrigins,
		Timeout:           10 * time.Second,
	})

	return &stack{
		model:  model,
		server: httptest.NewServer(engine),
		quotes: quotes,
	}, nil
}

func (s *stack) close() {
	s.server.Close()
	s.model.close()
}

// mustStartStack starts a stack that is torn down with the test.
func mustStartStack(t *testing.T, opts stackOptions) *stack {
	t.Helper()

	s, err := startStack(opts)
	if err != nil {
		t.Fatalf("starting stack: %v", err)
	}

	t.Cleanup(s.close)

	return s
}

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }

// movableClock lets a test cross a day boundary.
type movableClock struct {
	now atomic.Pointer[time.Time]
}

func newMovableClock(t time.Time) *movableClock {
	c := &movableClock{}
	c.set(t)

	return c
}

func (c *movableClock) set(t time.Time) { c.now.Store(&t) }

func (c *movableClock) Now() time.Time { return *c.now.Load() }
