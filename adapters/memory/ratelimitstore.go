package memory

import (
	"context"
	"sync"
	"time"

	"github.com/limitgate/limitgate/domain/ratelimit"
	"github.com/limitgate/limitgate/ports"
)

// RateLimitStore is a simple in-memory implementation of ports.RateLimitStore
// guarded by a single mutex. Suitable for tests and low-traffic deployments;
// use ShardedRateLimitStore in production.
type RateLimitStore struct {
	mu    sync.RWMutex
	state map[string]ratelimit.WindowState
}

// NewRateLimitStore creates a new in-memory rate limit store.
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		state: make(map[string]ratelimit.WindowState),
	}
}

// Take atomically charges one request against clientID's window.
func (s *RateLimitStore) Take(ctx context.Context, clientID string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, newState := ratelimit.Take(s.state[clientID], cfg, now)
	s.state[clientID] = newState
	return result, nil
}

// Get retrieves current window state for a client.
func (s *RateLimitStore) Get(ctx context.Context, clientID string) (ratelimit.WindowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[clientID], nil
}

// Set replaces window state for a client.
func (s *RateLimitStore) Set(ctx context.Context, clientID string, state ratelimit.WindowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[clientID] = state
	return nil
}

// Clear removes all state (for testing).
func (s *RateLimitStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string]ratelimit.WindowState)
}

// Len returns the number of tracked clients.
func (s *RateLimitStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*RateLimitStore)(nil)
