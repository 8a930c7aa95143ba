package security

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"checkin-system/internal/handlers"
	"checkin-system/internal/logging"
	"checkin-system/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/redis/go-redis/v9"
)

// RateLimiter keeps fixed-window request counters per client in Redis.
// A nil limiter, or one without a client, lets every request through.
type RateLimiter struct {
	redis  *redis.Client
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{redis: redisClient, window: window}
}

// Allow counts one request for client under scope. When the limit is exceeded
// it reports the seconds left in the current window.
func (r *RateLimiter) Allow(ctx context.Context, scope, client string, max int) (bool, int, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, client)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("failed to set rate limit window")
		}
	}
	if count <= int64(max) {
		return true, 0, nil
	}

	retryAfter := int(r.window / time.Second)
	if ttl, err := r.redis.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		retryAfter = int(math.Ceil(ttl.Seconds()))
	}
	return false, retryAfter, nil
}

// Limit is route middleware allowing max requests per window per client IP.
// Redis failures fail open.
func (r *RateLimiter) Limit(scope string, max int) *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "rateLimit_" + scope,
		Func: func(e *core.RequestEvent) error {
			if r == nil || r.redis == nil || max <= 0 {
				return e.Next()
			}

			client := clientIP(e)
			ok, retryAfter, err := r.Allow(e.Request.Context(), scope, client, max)
			if err != nil {
				logging.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable, allowing request")
				return e.Next()
			}
			if !ok {
				logging.Warn().Str("scope", scope).Str("client", client).Msg("rate limit exceeded")
				e.Response.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return handlers.Fail(e, status.ErrRateLimited.WithDetail("retry_after", retryAfter))
			}
			return e.Next()
		},
	}
}

// clientIP prefers the first X-Forwarded-For hop set by the venue proxy.
func clientIP(e *core.RequestEvent) string {
	if fwd := e.Request.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(e.Request.RemoteAddr)
	if err != nil {
		return e.Request.RemoteAddr
	}
	return host
}
