package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/geulsup/garden-gateway/internal/adapters/http/middleware"
	"github.com/geulsup/garden-gateway/internal/platform/config"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
)

const (
	instrumentationName = "github.com/geulsup/garden-gateway/internal/adapters/clients"

	defaultTimeout = 30 * time.Second
)

// Config configures an instrumented client.
type Config struct {
	// ServiceName identifies the upstream in logs, spans and metrics.
	ServiceName string

	// Timeout bounds the wait for response headers on each attempt.
	// Retries and backoff can make the whole call take longer.
	Timeout time.Duration

	Retry     config.RetryConfig
	Circuit   config.CircuitBreakerConfig
	Transport config.TransportConfig

	// AuthFunc injects credentials into every attempt.
	AuthFunc func(*http.Request)

	// Base is the underlying transport. Defaults to a pooled http.Transport.
	Base http.RoundTripper

	Logger *slog.Logger
}

// Client is an http.RoundTripper for upstream calls. Handing it to an SDK
// as its transport gives every SDK request:
//   - retry with exponential backoff and jitter on network errors, 429 and 5xx
//   - circuit breaker protection
//   - OpenTelemetry spans and metrics
//   - request and correlation ID propagation
type Client struct {
	base        http.RoundTripper
	serviceName string
	cfg         *Config
	logger      *slog.Logger
	cb          *CircuitBreaker

	tracer trace.Tracer

	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
}

// New creates an instrumented client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger = logger.With(
		slog.String("component", "clients.Client"),
		slog.String("downstream", cfg.ServiceName),
	)

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   cfg.Circuit.MaxFailures,
		Cooldown:      cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	})
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of upstream requests including retries"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration metric: %w", err)
	}

	requestTotal, err := meter.Int64Counter(
		"http.client.request.total",
		metric.WithDescription("Total number of upstream requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request counter: %w", err)
	}

	base := cfg.Base
	if base == nil {
		base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          cfg.Transport.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.Transport.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.Transport.IdleConnTimeout,
			ResponseHeaderTimeout: cfg.Timeout,
			ForceAttemptHTTP2:     true,
		}
	}

	return &Client{
		base:            base,
		serviceName:     cfg.ServiceName,
		cfg:             cfg,
		logger:          logger,
		cb:              cb,
		tracer:          otel.Tracer(instrumentationName),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
	}, nil
}

// HTTPClient returns an *http.Client that sends everything through c.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: c}
}

// CircuitState returns the current state of the circuit breaker.
func (c *Client) CircuitState() State {
	return c.cb.State()
}

// RoundTrip implements http.RoundTripper.
//
// Requests with a body are retried only when req.GetBody can rewind it,
// which is the case for bodies built by http.NewRequest from a buffer.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	logger := logging.FromContext(ctx).With(
		slog.String("downstream", c.serviceName),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	if !c.cb.Allow() {
		c.recordMetrics(ctx, req.Method, 0, time.Since(start), "circuit_open")
		logger.WarnContext(ctx, "request blocked by circuit breaker")

		// A RoundTripper must close the body even when it fails.
		if req.Body != nil {
			_ = req.Body.Close()
		}

		return nil, ErrCircuitOpen
	}

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.serviceName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.Redacted()),
			attribute.String("peer.service", c.serviceName),
		),
	)
	defer span.End()

	resp, err := c.roundTripWithRetry(ctx, req, logger)

	return c.recordResult(ctx, req.Method, resp, err, span, logger, start)
}

func (c *Client) roundTripWithRetry(ctx context.Context, req *http.Request, logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := range c.cfg.Retry.MaxAttempts {
		if attempt > 0 {
			if err := c.waitForRetry(ctx, attempt, logger); err != nil {
				return nil, err
			}
		}

		out, err := c.prepareAttempt(ctx, req, attempt)
		if err != nil {
			// Body cannot be replayed; report the previous failure.
			return nil, lastErr
		}

		resp, err := c.base.RoundTrip(out)

		last := attempt == c.cfg.Retry.MaxAttempts-1
		if retry := c.shouldRetry(resp, err); !retry || last {
			return resp, err
		}

		if err != nil {
			lastErr = err
			logger.DebugContext(ctx, "attempt failed with retryable error",
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)

			continue
		}

		lastErr = fmt.Errorf("upstream status %d", resp.StatusCode)
		logger.DebugContext(ctx, "attempt failed with retryable status",
			slog.Int("attempt", attempt+1),
			slog.Int("status", resp.StatusCode),
		)

		drainAndClose(resp)
	}

	return nil, lastErr
}

// prepareAttempt clones req for one attempt, rewinding the body on retries
// and injecting propagation and auth headers.
func (c *Client) prepareAttempt(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	out := req.Clone(ctx)

	if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errors.New("request body cannot be replayed")
		}

		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}

		out.Body = body
	}

	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		out.Header.Set(middleware.HeaderRequestID, requestID)
	}

	if correlationID := middleware.CorrelationIDFromContext(ctx); correlationID != "" {
		out.Header.Set(middleware.HeaderCorrelationID, correlationID)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	if c.cfg.AuthFunc != nil {
		c.cfg.AuthFunc(out)
	}

	return out, nil
}

func (c *Client) waitForRetry(ctx context.Context, attempt int, logger *slog.Logger) error {
	backoff := c.calculateBackoff(attempt)
	logger.DebugContext(ctx, "retrying request",
		slog.Int("attempt", attempt+1),
		slog.Duration("backoff", backoff),
	)

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return isRetryableError(err)
	}

	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

func (c *Client) recordResult(
	ctx context.Context,
	method string,
	resp *http.Response,
	err error,
	span trace.Span,
	logger *slog.Logger,
	start time.Time,
) (*http.Response, error) {
	duration := time.Since(start)

	if err != nil {
		c.cb.RecordFailure()
		span.SetStatus(codes.Error, err.Error())
		c.recordMetrics(ctx, method, 0, duration, "error")
		logger.ErrorContext(ctx, "upstream request failed",
			slog.Duration("duration", duration),
			slog.Any("error", err),
		)

		return nil, fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.cb.RecordFailure()
	} else {
		c.cb.RecordSuccess()
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	c.recordMetrics(ctx, method, resp.StatusCode, duration, fmt.Sprintf("%dxx", resp.StatusCode/100))

	logger.DebugContext(ctx, "upstream request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)

	return resp, nil
}

// calculateBackoff returns initial*multiplier^attempt capped at the max
// interval, with symmetric jitter of JitterFactor.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	r := c.cfg.Retry

	backoff := float64(r.InitialInterval) * math.Pow(r.Multiplier, float64(attempt-1))
	if backoff > float64(r.MaxInterval) {
		backoff = float64(r.MaxInterval)
	}

	jitter := backoff * r.JitterFactor * (rand.Float64()*2 - 1) //nolint:gosec // jitter only
	backoff += jitter

	return time.Duration(backoff)
}

func (c *Client) recordMetrics(ctx context.Context, method string, statusCode int, duration time.Duration, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", c.serviceName),
		attribute.String("result", result),
	}

	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	c.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	c.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError

	return errors.As(err, &opErr)
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
