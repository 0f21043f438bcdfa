package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/geulsup/garden-gateway/internal/adapters/http/dto"
	"github.com/geulsup/garden-gateway/internal/platform/config"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Every completion costs
// money upstream, so a single client cannot drain the budget.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter starts a limiter and its janitor. Call Close to stop it.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}

	rl := &RateLimiter{
		limit:    rate.Limit(cfg.RequestsPerSecond),
		burst:    max(cfg.Burst, 1),
		idleTTL:  idleTTL,
		now:      time.Now,
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go rl.janitor()

	return rl
}

// Middleware rejects requests over the client's budget with 429 and a
// Retry-After header. Preflights and operational routes are never limited.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || strings.HasPrefix(c.Request.URL.Path, "/-/") {
			c.Next()
			return
		}

		wait, ok := rl.reserve(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))

		resp := dto.NewErrorResponse(dto.ErrorCodeRateLimited, dto.MessageRateLimited).
			WithTraceID(dto.GetTraceID(c))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
	}
}

// Close stops the janitor. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stop)
		<-rl.done
	})
}

// reserve takes a token for key. When none is available it returns how
// long the client should wait, and takes nothing.
func (rl *RateLimiter) reserve(key string) (time.Duration, bool) {
	now := rl.now()

	rl.mu.Lock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}

	v.lastSeen = now
	rl.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Second, false
	}

	delay := r.DelayFrom(now)
	if delay == 0 {
		return 0, true
	}

	r.CancelAt(now)

	return delay, false
}

func (rl *RateLimiter) janitor() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evict(rl.now())
		}
	}
}

// evict drops limiters idle for longer than idleTTL.
func (rl *RateLimiter) evict(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0

	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.idleTTL {
			delete(rl.visitors, key)
			evicted++
		}
	}

	return evicted
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}
