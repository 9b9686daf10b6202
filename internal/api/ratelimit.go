package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/upnorway/sanity-plugin-media/internal/ratelimit"
)

const rateLimitMessage = "Too many requests. Please try again later."

// RateLimiter wraps KeyedRateLimiter for API use.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a new rate limiter.
// rate: number of requests allowed per interval
// interval: time period for rate (e.g., time.Minute)
// burst: maximum burst size
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	return ratelimit.NewPerInterval(ratePerInterval, interval, burst)
}

// RateLimitMiddleware creates a middleware that rate limits requests by IP.
// Returns 429 Too Many Requests when limit is exceeded.
func RateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getClientIP(r.Header.Get, r.RemoteAddr)

			if !limiter.Allow(key) {
				logger.Warn("Rate limit exceeded",
					"ip", key,
					"path", r.URL.Path,
				)
				writeTooManyRequests(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitIntents is the huma equivalent of RateLimitMiddleware, attached
// to operations that dispatch intents.
func (s *Server) rateLimitIntents(ctx huma.Context, next func(huma.Context)) {
	if s.limiter == nil {
		next(ctx)
		return
	}

	key := getClientIP(ctx.Header, ctx.RemoteAddr())
	if !s.limiter.Allow(key) {
		s.logger.Warn("Rate limit exceeded",
			"ip", key,
			"operation", ctx.Operation().OperationID,
		)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, rateLimitMessage)
		return
	}

	next(ctx)
}

func writeTooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(&APIError{
		Code:    codeRateLimited,
		Message: rateLimitMessage,
	})
}

// getClientIP extracts the client IP from request headers.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(header func(string) string, remoteAddr string) string {
	// X-Forwarded-For may contain multiple IPs, first is client.
	if xff := header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := header("X-Real-IP"); xri != "" {
		return xri
	}

	// Fall back to RemoteAddr (strip port).
	if i := strings.LastIndexByte(remoteAddr, ':'); i >= 0 {
		return remoteAddr[:i]
	}
	return remoteAddr
}
