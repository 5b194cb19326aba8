// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/limitgate/limitgate/domain/proxy"
	"github.com/limitgate/limitgate/domain/ratelimit"
	"github.com/limitgate/limitgate/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Rate Limit Ports
// -----------------------------------------------------------------------------

// RateLimitStore owns per-client window state.
type RateLimitStore interface {
	// Take atomically charges one request against clientID's window and
	// returns the decision. The read-check-reset-charge sequence must be
	// atomic with respect to concurrent calls for the same clientID.
	Take(ctx context.Context, clientID string, cfg ratelimit.Config, now time.Time) (ratelimit.Result, error)

	// Get retrieves current window state for a client.
	Get(ctx context.Context, clientID string) (ratelimit.WindowState, error)

	// Set replaces window state for a client.
	Set(ctx context.Context, clientID string, state ratelimit.WindowState) error
}

// -----------------------------------------------------------------------------
// Usage Ports
// -----------------------------------------------------------------------------

// UsageStore persists request log events and summaries.
type UsageStore interface {
	// RecordBatch stores multiple events.
	RecordBatch(ctx context.Context, events []usage.Event) error

	// GetSummary returns aggregated traffic for a period.
	GetSummary(ctx context.Context, clientID string, start, end time.Time) (usage.Summary, error)

	// GetRecentRequests returns the most recent events for a client.
	GetRecentRequests(ctx context.Context, clientID string, limit int) ([]usage.Event, error)
}

// UsageRecorder accepts events for async processing.
type UsageRecorder interface {
	// Record queues an event for processing. Non-blocking.
	Record(event usage.Event)

	// Flush forces immediate processing of queued events.
	Flush(ctx context.Context) error

	// Close stops the recorder and flushes remaining events.
	Close() error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// Upstream represents the backend API being proxied.
type Upstream interface {
	// Forward sends a request to the upstream and returns the response.
	Forward(ctx context.Context, req proxy.Request) (proxy.Response, error)

	// HealthCheck verifies the upstream is reachable.
	HealthCheck(ctx context.Context) error
}
