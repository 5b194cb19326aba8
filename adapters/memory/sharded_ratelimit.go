package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/limitgate/limitgate/domain/ratelimit"
	"github.com/limitgate/limitgate/ports"
)

// rateLimitShard is a single shard of the rate limit store.
type rateLimitShard struct {
	mu    sync.RWMutex
	state map[string]ratelimit.WindowState
}

// ShardedRateLimitStore is a production-ready sharded in-memory rate limit store.
// Sharding reduces lock contention under concurrent traffic while keeping the
// read-check-reset-charge sequence atomic per client.
type ShardedRateLimitStore struct {
	shards    []*rateLimitShard
	numShards int
	retention atomic.Int64 // nanoseconds; adjustable on config reload
	cleanup   *time.Ticker
	done      chan struct{}
}

// ShardedRateLimitConfig configures the sharded rate limit store.
type ShardedRateLimitConfig struct {
	NumShards       int           // Number of shards (default: 32)
	CleanupInterval time.Duration // How often to sweep stale windows (default: 1m)
	Retention       time.Duration // How long a stale window survives before eviction (default: 5m)
}

// NewShardedRateLimitStore creates a new sharded in-memory rate limit store
// and starts its background sweep.
func NewShardedRateLimitStore(cfg ShardedRateLimitConfig) *ShardedRateLimitStore {
	if cfg.NumShards <= 0 {
		cfg.NumShards = 32
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 5 * time.Minute
	}

	s := &ShardedRateLimitStore{
		shards:    make([]*rateLimitShard, cfg.NumShards),
		numShards: cfg.NumShards,
	}
	s.retention.Store(int64(cfg.Retention))

	for i := range s.shards {
		s.shards[i] = &rateLimitShard{
			state: make(map[string]ratelimit.WindowState),
		}
	}

	s.done = make(chan struct{})
	s.cleanup = time.NewTicker(cfg.CleanupInterval)
	go s.cleanupLoop()

	return s
}

// getShard returns the shard for a given key using consistent hashing.
func (s *ShardedRateLimitStore) getShard(clientID string) *rateLimitShard {
	h := fnv.New32a()
	h.Write([]byte(clientID))
	return s.shards[h.Sum32()%uint32(s.numShards)]
}

// Take atomically charges one request against clientID's window and returns
// the decision. Concurrent callers for the same client serialize on the
// shard lock, so no request is lost or double-counted.
func (s *ShardedRateLimitStore) Take(ctx context.Context, clientID string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error) {
	shard := s.getShard(clientID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	result, newState := ratelimit.Take(shard.state[clientID], cfg, now)
	shard.state[clientID] = newState
	return result, nil
}

// Get retrieves current window state for a client.
func (s *ShardedRateLimitStore) Get(ctx context.Context, clientID string) (ratelimit.WindowState, error) {
	shard := s.getShard(clientID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	return shard.state[clientID], nil
}

// Set replaces window state for a client.
func (s *ShardedRateLimitStore) Set(ctx context.Context, clientID string, state ratelimit.WindowState) error {
	shard := s.getShard(clientID)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.state[clientID] = state
	return nil
}

// cleanupLoop periodically evicts stale entries so the map stays bounded
// even when client IDs churn.
func (s *ShardedRateLimitStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanup.C:
			s.Sweep(time.Now())
		case <-s.done:
			return
		}
	}
}

// SetRetention adjusts how long stale windows survive before eviction.
// Called when the window length is reloaded so a longer window is never
// swept mid-flight.
func (s *ShardedRateLimitStore) SetRetention(d time.Duration) {
	s.retention.Store(int64(d))
}

// Sweep removes entries whose window started more than the retention period
// ago. Such windows have long since expired; re-creating one on the next
// request is indistinguishable from keeping it.
func (s *ShardedRateLimitStore) Sweep(now time.Time) {
	cutoff := now.Add(-time.Duration(s.retention.Load()))

	for _, shard := range s.shards {
		shard.mu.Lock()
		for key, state := range shard.state {
			if !state.WindowStart.IsZero() && state.WindowStart.Before(cutoff) {
				delete(shard.state, key)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (s *ShardedRateLimitStore) Close() error {
	close(s.done)
	s.cleanup.Stop()
	return nil
}

// Clear removes all state (for testing).
func (s *ShardedRateLimitStore) Clear() {
	for _, shard := range s.shards {
		shard.mu.Lock()
		shard.state = make(map[string]ratelimit.WindowState)
		shard.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards (for testing).
func (s *ShardedRateLimitStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.RLock()
		total += len(shard.state)
		shard.mu.RUnlock()
	}
	return total
}

// Ensure interface compliance.
var _ ports.RateLimitStore = (*ShardedRateLimitStore)(nil)
