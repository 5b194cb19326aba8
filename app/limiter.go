// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/limitgate/limitgate/domain/ratelimit"
	"github.com/limitgate/limitgate/ports"
)

// UnknownClientID is charged when no client identity can be derived
// from a request. All such requests share one window.
const UnknownClientID = "unknown"

// LimiterService evaluates requests against per-client windows.
type LimiterService struct {
	store ports.RateLimitStore
	clock ports.Clock

	// Hot-reloadable limit configuration
	dynamicCfg atomic.Pointer[LimiterConfig]
}

// LimiterConfig contains the hot-reloadable limit settings.
type LimiterConfig struct {
	Limit   int
	Window  int // seconds
	Enforce bool
}

// NewLimiterService creates a limiter backed by the given store.
func NewLimiterService(store ports.RateLimitStore, clock ports.Clock, cfg LimiterConfig) *LimiterService {
	s := &LimiterService{
		store: store,
		clock: clock,
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig swaps the limit settings. Thread-safe; in-flight windows
// are judged against the new limit on their next request.
func (s *LimiterService) UpdateConfig(cfg LimiterConfig) {
	s.dynamicCfg.Store(&cfg)
}

// Config returns the current limit settings.
func (s *LimiterService) Config() LimiterConfig {
	return *s.dynamicCfg.Load()
}

// Evaluate charges one request against clientID's window and returns the
// decision. The request is always charged, even when over the limit.
// An empty clientID falls back to the shared unknown bucket.
func (s *LimiterService) Evaluate(ctx context.Context, clientID string) (ratelimit.Result, error) {
	if clientID == "" {
		clientID = UnknownClientID
	}

	cfg := s.dynamicCfg.Load()
	rlCfg := ratelimit.Config{
		Limit:  cfg.Limit,
		Window: time.Duration(cfg.Window) * time.Second,
	}

	return s.store.Take(ctx, clientID, rlCfg, s.clock.Now())
}

// Enforce reports whether over-limit requests should be rejected
// instead of annotated and passed through.
func (s *LimiterService) Enforce() bool {
	return s.dynamicCfg.Load().Enforce
}

// Now returns the limiter's view of the current time.
func (s *LimiterService) Now() time.Time {
	return s.clock.Now()
}
