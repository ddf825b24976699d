package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"rollcall/internal/ratelimit/metrics"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

// Limiter is HTTP middleware applying one limit per client IP.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New returns a limiter allowing limit requests per window. A non-positive
// limit disables it.
func New(store Store, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{store: store, limit: limit, window: window, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Middleware refuses requests over the limit with 429. Store failures let
// the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := l.store.Allow(ctx, "submit:"+ip, l.limit, l.window)
		if err != nil {
			l.metrics.Observe("error")
			l.logger.ErrorContext(ctx, "rate limit check failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		addHeaders(w, result)
		if !result.Allowed {
			l.metrics.Observe("limited")
			l.logger.WarnContext(ctx, "submission rate limited",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", ip,
			)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
				Error:            "rate_limit_exceeded",
				ErrorDescription: "too many submissions, try again later",
			})
			return
		}
		l.metrics.Observe("allowed")
		next.ServeHTTP(w, r)
	})
}

func addHeaders(w http.ResponseWriter, result *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
