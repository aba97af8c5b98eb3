package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

type fixedWindow struct {
	client redis.Cmdable
	cfg    RateLimitConfig
}

// hit counts one request for client and returns the count in the current
// window together with the time left in it.
func (fw fixedWindow) hit(ctx context.Context, client string) (int64, time.Duration, error) {
	key := fw.cfg.KeyPrefix + ":" + client

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := fw.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		// First hit of the window, or a key left behind without an expiry.
		if err := fw.client.PExpire(ctx, key, fw.cfg.Window).Err(); err != nil {
			return 0, 0, err
		}
		remaining = fw.cfg.Window
	}
	return incr.Val(), remaining, nil
}

// RateLimitMiddleware limits each client IP to RequestsPerWindow requests per
// fixed window. Requests pass when Redis is unavailable.
func RateLimitMiddleware(redisClient redis.Cmdable, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	limiter := fixedWindow{client: redisClient, cfg: config}
	limit := strconv.Itoa(config.RequestsPerWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)

			count, ttl, err := limiter.hit(r.Context(), client)
			if err != nil {
				logger.Error("Rate limiter unavailable, letting request through",
					zap.Error(err),
					zap.String("client_ip", client),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limit)

			if count > int64(config.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("client_ip", client),
					zap.String("path", r.URL.Path),
					zap.Int64("count", count),
				)

				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
				RespondWithError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(int64(config.RequestsPerWindow)-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has already
// applied any X-Forwarded-For value.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
