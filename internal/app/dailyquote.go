package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/geulsup/garden-gateway/internal/domain"
	"github.com/geulsup/garden-gateway/internal/platform/logging"
	"github.com/geulsup/garden-gateway/internal/ports"
)

const (
	// DefaultFallbackQuote is served until the first successful refresh.
	DefaultFallbackQuote = "오늘도 당신의 정원에 평안이 깃들기를."

	// DefaultRefreshTimeout bounds a single refresh.
	DefaultRefreshTimeout = 20 * time.Second

	// DefaultQuoteTemperature is the sampling temperature for greetings.
	DefaultQuoteTemperature float32 = 0.9

	operationDailyQuote = "daily_quote"
)

// Refresh outcomes, used as metric labels.
const (
	RefreshSuccess     = "success"
	RefreshUnavailable = "unavailable"
	RefreshEmpty       = "empty"
	RefreshError       = "error"
)

// DailyQuoteCacheConfig contains the dependencies of the daily quote cache.
type DailyQuoteCacheConfig struct {
	Client  ports.CompletionClient
	Clock   ports.Clock
	Metrics ports.MetricsRecorder
	Logger  *slog.Logger

	// Location defines the day boundary. Defaults to Asia/Seoul.
	Location *time.Location

	RefreshTimeout time.Duration
	Temperature    float32
	FallbackText   string
}

// DailyQuoteCache keeps one day's worth of generated greetings and serves
// a random one per request. At most one upstream generation runs per day:
// same-day readers take a lock-free fast path, and stale readers share a
// single in-flight refresh.
type DailyQuoteCache struct {
	client  ports.CompletionClient
	clock   ports.Clock
	metrics ports.MetricsRecorder
	logger  *slog.Logger
	loc     *time.Location

	refreshTimeout time.Duration
	temperature    float32

	entry  atomic.Pointer[domain.QuoteCacheEntry]
	flight singleflight.Group
}

// NewDailyQuoteCache creates a cache holding only the fallback text.
func NewDailyQuoteCache(cfg DailyQuoteCacheConfig) *DailyQuoteCache {
	c := &DailyQuoteCache{
		client:         cfg.Client,
		clock:          cfg.Clock,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		loc:            cfg.Location,
		refreshTimeout: cfg.RefreshTimeout,
		temperature:    cfg.Temperature,
	}

	if c.clock == nil {
		c.clock = ports.SystemClock{}
	}

	if c.metrics == nil {
		c.metrics = ports.NopMetrics{}
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.logger = c.logger.With(slog.String("component", "app.DailyQuoteCache"))

	if c.loc == nil {
		c.loc = SeoulLocation()
	}

	if c.refreshTimeout <= 0 {
		c.refreshTimeout = DefaultRefreshTimeout
	}

	if c.temperature <= 0 {
		c.temperature = DefaultQuoteTemperature
	}

	fallback := cfg.FallbackText
	if fallback == "" {
		fallback = DefaultFallbackQuote
	}

	c.entry.Store(&domain.QuoteCacheEntry{Texts: []string{fallback}})

	return c
}

// EnsureFresh makes sure today's quotes are cached, generating them when
// the cached day is over or today's first generation failed.
//
// It never fails. When the upstream is down or returns nothing usable the
// previous entry stays in place. If ctx ends while a refresh is running the
// caller stops waiting, but the refresh itself carries on for later callers.
func (c *DailyQuoteCache) EnsureFresh(ctx context.Context) {
	now := c.clock.Now().In(c.loc)
	today := domain.DateOf(now, c.loc)

	if c.entry.Load().IsFreshFor(today) {
		return
	}

	refreshCtx := context.WithoutCancel(ctx)
	done := c.flight.DoChan(today.String(), func() (any, error) {
		return nil, c.refresh(refreshCtx, now, today)
	})

	select {
	case <-done:
	case <-ctx.Done():
		logging.FromContext(ctx).DebugContext(ctx, "stopped waiting for daily quote refresh",
			slog.Any("error", ctx.Err()),
		)
	}
}

// PickOne returns a uniformly random quote from the current entry.
func (c *DailyQuoteCache) PickOne() string {
	texts := c.entry.Load().Texts
	c.metrics.QuoteServed()

	return texts[rand.IntN(len(texts))]
}

// Quote refreshes if needed and picks one quote.
func (c *DailyQuoteCache) Quote(ctx context.Context) string {
	c.EnsureFresh(ctx)
	return c.PickOne()
}

// Snapshot returns a copy of the current entry.
func (c *DailyQuoteCache) Snapshot() domain.QuoteCacheEntry {
	e := c.entry.Load()

	return domain.QuoteCacheEntry{
		ReferenceDate: e.ReferenceDate,
		Texts:         append([]string(nil), e.Texts...),
	}
}

func (c *DailyQuoteCache) refresh(ctx context.Context, now time.Time, day domain.CalendarDate) error {
	// A flight for the same day may have committed between our fast-path
	// check and this flight starting.
	if c.entry.Load().IsFreshFor(day) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
	defer cancel()

	logger := c.logger.With(slog.String("day", day.String()))

	texts, err := Run(ctx, Pipeline[string, []string]{
		Name: "daily_quote_refresh",
		Perform: func(ctx context.Context) (string, error) {
			return c.client.Complete(ctx, domain.CompletionRequest{
				Operation:   operationDailyQuote,
				System:      BuildDailyQuotePrompt(now),
				Temperature: c.temperature,
			})
		},
		Verify: func(_ context.Context, raw string) ([]string, error) {
			lines := ParseLines(raw)
			if len(lines) == 0 {
				return nil, domain.ErrEmptyGeneration
			}

			return lines, nil
		},
		Commit: func(_ context.Context, lines []string) error {
			c.commit(&domain.QuoteCacheEntry{ReferenceDate: day, Texts: lines})
			return nil
		},
	})

	result := refreshResult(err)
	c.metrics.QuoteRefresh(result)

	if err != nil {
		logger.WarnContext(ctx, "daily quote refresh failed, keeping previous quotes",
			slog.String("result", result),
			slog.Any("error", err),
		)

		return err
	}

	logger.InfoContext(ctx, "daily quotes refreshed", slog.Int("count", len(texts)))

	return nil
}

// commit swaps in next unless a later day is already cached. A slow
// refresh that finishes after midnight must not replace tomorrow's quotes.
func (c *DailyQuoteCache) commit(next *domain.QuoteCacheEntry) {
	for {
		cur := c.entry.Load()
		if next.ReferenceDate.Before(cur.ReferenceDate) {
			return
		}

		if c.entry.CompareAndSwap(cur, next) {
			return
		}
	}
}

func refreshResult(err error) string {
	switch {
	case err == nil:
		return RefreshSuccess
	case errors.Is(err, domain.ErrEmptyGeneration):
		return RefreshEmpty
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return RefreshUnavailable
	default:
		return RefreshError
	}
}
