// Package http provides the gateway's HTTP surface.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/limitgate/limitgate/adapters/metrics"
	"github.com/limitgate/limitgate/app"
	"github.com/limitgate/limitgate/domain/proxy"
	"github.com/limitgate/limitgate/domain/ratelimit"
	"github.com/limitgate/limitgate/ports"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// errorBody is the JSON shape for gateway-originated errors.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ProxyHandler forwards requests to the upstream via the gateway service.
type ProxyHandler struct {
	gateway *app.GatewayService
	logger  zerolog.Logger
}

// NewProxyHandler creates a new HTTP proxy handler.
func NewProxyHandler(gateway *app.GatewayService, logger zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{
		gateway: gateway,
		logger:  logger,
	}
}

// ServeHTTP forwards the request upstream and writes the response back.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := ClientIDFromContext(ctx)

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, 10<<20)) // 10MB limit
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to read request body")
			writeError(w, &proxy.ErrorResponse{
				Status:  400,
				Code:    "bad_request",
				Message: "Failed to read request body",
			})
			return
		}
	}

	req := proxy.Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
		Headers:   extractHeaders(r),
		Body:      body,
		RemoteIP:  ExtractClientID(r),
		UserAgent: r.UserAgent(),
		TraceID:   middleware.GetReqID(ctx),
	}

	resp, errResp := h.gateway.Forward(ctx, clientID, req)
	if errResp != nil {
		h.logger.Warn().
			Str("method", req.Method).
			Str("path", req.Path).
			Str("client_id", clientID).
			Int("error_status", errResp.Status).
			Str("error_code", errResp.Code).
			Msg("proxy request failed")
		writeError(w, errResp)
		return
	}

	h.logger.Info().
		Str("method", req.Method).
		Str("path", req.Path).
		Str("client_id", clientID).
		Int("status", resp.Status).
		Int64("latency_ms", resp.LatencyMs).
		Str("trace_id", req.TraceID).
		Msg("proxy request")

	for k, v := range resp.Headers {
		if isReservedHeader(k) {
			continue
		}
		w.Header().Set(k, v)
	}

	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			h.logger.Error().Err(err).Msg("failed to write response body")
		}
	}
}

// extractHeaders extracts forwardable headers from the request.
func extractHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)

	// Go stores the Host header in r.Host, not r.Header
	if r.Host != "" {
		headers["Host"] = r.Host
	}

	for k, v := range r.Header {
		if isHopByHop(k) {
			continue
		}
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return headers
}

// isReservedHeader reports whether a response header is owned by the
// gateway. The limiter's accounting headers must reflect this gateway's
// windows even when the upstream emits its own rate limit headers.
func isReservedHeader(name string) bool {
	switch http.CanonicalHeaderKey(name) {
	case ratelimit.HeaderLimit, ratelimit.HeaderRemaining, ratelimit.HeaderReset, ratelimit.HeaderRetryAfter:
		return true
	}
	return false
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, err *proxy.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    err.Code,
			Message: err.Message,
		},
	})
}

// HealthChecker reports upstream reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	upstream HealthChecker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(upstream HealthChecker) *HealthHandler {
	return &HealthHandler{upstream: upstream}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// Readiness checks if the service and upstream are ready to handle traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.upstream != nil {
		if err := h.upstream.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// Version returns the service version.
func Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{
		Version: "dev",
		Service: "limitgate",
	})
}

// StatsHandler exposes recorded traffic.
type StatsHandler struct {
	store ports.UsageStore
	clock ports.Clock
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(store ports.UsageStore, clock ports.Clock) *StatsHandler {
	return &StatsHandler{store: store, clock: clock}
}

// Summary returns aggregated traffic for the past hour, optionally
// filtered to one client via the client_id query parameter.
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	clientID := r.URL.Query().Get("client_id")

	summary, err := h.store.GetSummary(r.Context(), clientID, now.Add(-time.Hour), now)
	if err != nil {
		writeError(w, &proxy.ErrorResponse{
			Status:  500,
			Code:    "stats_unavailable",
			Message: "Failed to load traffic summary",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// Recent returns the latest recorded requests for a client.
func (h *StatsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := h.store.GetRecentRequests(r.Context(), clientID, limit)
	if err != nil {
		writeError(w, &proxy.ErrorResponse{
			Status:  500,
			Code:    "stats_unavailable",
			Message: "Failed to load recent requests",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"requests": events})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler  // Optional handler for /metrics (defaults to promhttp when Metrics is set)
	Stats          *StatsHandler // Optional traffic stats endpoints
}

// NewRouter creates the main HTTP router.
func NewRouter(proxyHandler *ProxyHandler, healthHandler *HealthHandler, limiter *app.LimiterService, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(proxyHandler, healthHandler, limiter, logger, RouterConfig{})
}

// NewRouterWithConfig creates the main HTTP router with optional config.
//
// The rate limit middleware is registered with Use so it wraps every
// outcome the router can produce, including the JSON 404 for unmatched
// paths. It sits inside Recoverer, which means headers written before a
// handler panic survive onto the 500 response.
func NewRouterWithConfig(proxyHandler *ProxyHandler, healthHandler *HealthHandler, limiter *app.LimiterService, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	r.Use(NewRateLimitMiddleware(limiter, cfg.Metrics, logger))

	r.Get("/health", healthHandler.Liveness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	} else if cfg.Metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Get("/version", Version)

	if cfg.Stats != nil {
		r.Get("/stats/summary", cfg.Stats.Summary)
		r.Get("/stats/recent", cfg.Stats.Recent)
	}

	r.HandleFunc("/api/*", proxyHandler.ServeHTTP)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, &proxy.ErrNotFound)
	})

	return r
}
