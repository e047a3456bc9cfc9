package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-gateway/internal/config"
	"github.com/stemsi/exstem-gateway/internal/response"
)

// RateLimiter implements a per-student token bucket rate limiter. Requests
// without student claims are keyed by client IP.
//
// When a Redis client is set, limits are counted in Redis fixed windows so
// that several gateway replicas share one budget per student.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // Tokens per interval
	interval time.Duration // Refill interval
	clock    clockwork.Clock
	rdb      *redis.Client
	log      zerolog.Logger
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRedis counts requests in Redis instead of process memory.
func WithRedis(rdb *redis.Client) RateLimiterOption {
	return func(rl *RateLimiter) { rl.rdb = rdb }
}

// WithClock replaces the wall clock.
func WithClock(clock clockwork.Clock) RateLimiterOption {
	return func(rl *RateLimiter) { rl.clock = clock }
}

// NewRateLimiter creates a RateLimiter (e.g., 120 requests per minute).
func NewRateLimiter(rate int, interval time.Duration, log zerolog.Logger, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		log:      log.With().Str("component", "rate_limiter").Logger(),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// RunCleanup removes stale visitors every minute until ctx is cancelled.
func (rl *RateLimiter) RunCleanup(ctx context.Context) {
	ticker := rl.clock.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.cleanup()
		}
	}
}

// Middleware returns a Gin middleware that rate-limits requests. Mount it
// after the JWT middleware so the student ID is available.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.Request.Context(), rl.keyFor(c)) {
			response.AbortRateLimited(c, rl.interval)
			return
		}
		c.Next()
	}
}

// Allow consumes one token for key and reports whether the request may proceed.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.rdb != nil {
		ok, err := rl.allowRedis(ctx, key)
		if err == nil {
			return ok
		}
		// Redis unavailable: fall back to the local bucket.
		rl.log.Warn().Err(err).Msg("Redis rate limit failed, using local limiter")
	}
	return rl.allowLocal(key)
}

func (rl *RateLimiter) allowLocal(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	v, exists := rl.visitors[key]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: now}
		rl.visitors[key] = v
	}

	// Refill tokens based on elapsed time.
	elapsed := now.Sub(v.lastSeen)
	refill := int(elapsed/rl.interval) * rl.rate
	if refill > 0 {
		v.tokens += refill
		if v.tokens > rl.rate {
			v.tokens = rl.rate
		}
		v.lastSeen = now
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	window := rl.clock.Now().UnixNano() / int64(rl.interval)
	redisKey := "ratelimit:" + key + ":" + strconv.FormatInt(window, 10)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return incr.Val() <= int64(rl.rate), nil
}

func (rl *RateLimiter) keyFor(c *gin.Context) string {
	if claims := GetClaims(c); claims != nil {
		return config.CacheKey.RateLimitKey(claims.UserID)
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.clock.Now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 3*rl.interval {
			delete(rl.visitors, key)
		}
	}
}
