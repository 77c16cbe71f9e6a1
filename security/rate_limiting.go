package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Allow implements a fixed-window counter on Redis. A Redis failure
// fails open: throttling is protection, not correctness.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		r.redis.Expire(ctx, key, window)
	}
	return count <= int64(limit)
}

// HTTPRateLimit is the request middleware for the listing API: rejects
// scraper user agents and throttles per client IP.
func (r *RateLimiter) HTTPRateLimit(limit int) func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		userAgent := e.Request.Header.Get("User-Agent")
		if r.isSuspiciousUserAgent(userAgent) {
			return e.JSON(403, map[string]string{
				"error": "Access denied",
			})
		}

		key := fmt.Sprintf("ratelimit:http:%s", e.RealIP())
		if !r.Allow(e.Request.Context(), key, limit, time.Minute) {
			return e.JSON(429, map[string]string{
				"error": "Too many requests",
			})
		}

		return e.Next()
	}
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
