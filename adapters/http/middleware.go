package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/limitgate/limitgate/adapters/metrics"
	"github.com/limitgate/limitgate/app"
	"github.com/limitgate/limitgate/domain/proxy"
	"github.com/limitgate/limitgate/domain/ratelimit"
	"github.com/rs/zerolog"
)

type contextKey string

const clientIDKey contextKey = "limitgate.client_id"

// ClientIDFromContext returns the rate limit bucket the request was charged
// to, or the unknown sentinel if the middleware did not run.
func ClientIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(clientIDKey).(string); ok {
		return id
	}
	return app.UnknownClientID
}

// ExtractClientID derives the rate limit bucket for a request.
// Order: first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr
// with the port stripped. Never fails; requests with no derivable
// identity share the unknown bucket.
func ExtractClientID(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if id := strings.TrimSpace(parts[0]); id != "" {
			return id
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		addr = addr[:idx]
	}
	if addr == "" {
		return app.UnknownClientID
	}
	return addr
}

// NewRateLimitMiddleware creates middleware that charges every request
// against the client's window and annotates the response.
//
// The X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset
// headers are set before the inner handler runs, so every response
// carries them: successes, 404s from the router, and 500s written by
// the panic recoverer alike. When the window is exhausted a Retry-After
// header is added.
//
// By default over-limit requests still pass through annotated. When the
// limiter is configured to enforce, they are rejected with a 429.
func NewRateLimitMiddleware(limiter *app.LimiterService, m *metrics.Collector, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ExtractClientID(r)

			result, err := limiter.Evaluate(r.Context(), clientID)
			if err != nil {
				// Never block traffic on limiter failure
				logger.Error().Err(err).Str("client_id", clientID).Msg("rate limit evaluation failed")
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDKey, clientID)))
				return
			}

			for k, v := range ratelimit.Headers(result, limiter.Now()) {
				w.Header().Set(k, v)
			}

			if !result.Allowed {
				logger.Warn().
					Str("client_id", clientID).
					Int("limit", result.Limit).
					Time("reset_at", result.ResetAt).
					Msg("rate limit exceeded")

				if m != nil {
					m.RateLimitHits.WithLabelValues(clientID).Inc()
				}

				if limiter.Enforce() {
					writeError(w, &proxy.ErrRateLimited)
					return
				}
			}

			if m != nil {
				m.RateLimitRemaining.WithLabelValues(clientID).Set(float64(result.Remaining))
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDKey, clientID)))
		})
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := statusLabel(ww.Status())
			path := metrics.NormalizePath(r.URL.Path)

			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
