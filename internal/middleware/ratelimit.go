package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Limiter counts requests under a key within a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, error)
}

type RateLimiter struct {
	limiter Limiter
	logger  *zap.Logger
}

func NewRateLimiter(limiter Limiter, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{limiter: limiter, logger: logger}
}

// Limit caps requests per client IP to max per window for one route scope.
// When the backing store is unreachable the limiter fails open: availability
// wins over throttling.
func (rl *RateLimiter) Limit(scope string, max int64, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "rate_limit:" + scope + ":" + clientIP(r)

			allowed, err := rl.limiter.Allow(r.Context(), key, max, window)
			if err != nil {
				rl.logger.Warn("Rate limiter unavailable, allowing request",
					zap.String("scope", scope),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"success":    false,
					"message":    "Too many requests. Please try again later.",
					"retryAfter": int(window.Seconds()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if i := strings.IndexByte(forwarded, ','); i >= 0 {
			return strings.TrimSpace(forwarded[:i])
		}
		return strings.TrimSpace(forwarded)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
