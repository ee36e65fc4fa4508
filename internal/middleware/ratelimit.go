package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jayakanthcm/moodcast-backend/pkg/clientip"
)

const (
	// RateLimitWindow is the fixed counting window.
	RateLimitWindow = 60 * time.Second
	// RateLimitMaxRequests is the maximum number of requests allowed in the window.
	RateLimitMaxRequests = 60
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting.
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for temporarily blocked IPs.
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked after blowing the limit.
	BlockedIPDuration = 15 * time.Minute
)

// RateLimit is a fixed-window per-IP limiter backed by Redis. An IP that
// exceeds the window limit is blocked for BlockedIPDuration. Redis
// errors fail open: a broken limiter must not take the API down.
func RateLimit(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.RealClientIP(r)
			ctx := context.Background()

			blocked, err := rdb.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
			if err == nil && blocked > 0 {
				tooManyRequests(w)
				return
			}

			key := RateLimitKeyPrefix + ip
			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, RateLimitWindow)
			}

			if count > RateLimitMaxRequests {
				rdb.Set(ctx, BlockedIPKeyPrefix+ip, "1", BlockedIPDuration)
				tooManyRequests(w)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(RateLimitMaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(RateLimitMaxRequests-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"success":false,"message":"Too many requests. Please try again later."}`))
}
