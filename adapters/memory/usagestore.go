package memory

import (
	"context"
	"sync"
	"time"

	"github.com/limitgate/limitgate/domain/usage"
	"github.com/limitgate/limitgate/ports"
)

// UsageStore keeps request log events in a bounded in-memory ring.
// When the ring is full the oldest events are overwritten, so memory
// stays constant regardless of traffic volume.
type UsageStore struct {
	mu     sync.RWMutex
	events []usage.Event
	next   int
	full   bool
}

// NewUsageStore creates a ring of the given capacity.
func NewUsageStore(capacity int) *UsageStore {
	if capacity <= 0 {
		capacity = 4096
	}
	return &UsageStore{
		events: make([]usage.Event, capacity),
	}
}

// RecordBatch stores multiple events.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		s.events[s.next] = e
		s.next++
		if s.next == len(s.events) {
			s.next = 0
			s.full = true
		}
	}
	return nil
}

// GetSummary returns aggregated traffic for a period.
// An empty clientID aggregates across all clients.
func (s *UsageStore) GetSummary(ctx context.Context, clientID string, start, end time.Time) (usage.Summary, error) {
	s.mu.RLock()
	matched := s.collect(clientID, 0)
	s.mu.RUnlock()

	inPeriod := matched[:0]
	for _, e := range matched {
		if !e.Timestamp.Before(start) && e.Timestamp.Before(end) {
			inPeriod = append(inPeriod, e)
		}
	}

	summary := usage.Aggregate(inPeriod, start, end)
	summary.ClientID = clientID
	return summary, nil
}

// GetRecentRequests returns the most recent events for a client,
// newest first.
func (s *UsageStore) GetRecentRequests(ctx context.Context, clientID string, limit int) ([]usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.collect(clientID, limit)

	// collect walks oldest to newest; reverse for newest first
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, nil
}

// Len returns the number of stored events.
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.events)
	}
	return s.next
}

// collect returns events for clientID in insertion order.
// Caller must hold at least the read lock.
func (s *UsageStore) collect(clientID string, max int) []usage.Event {
	var out []usage.Event

	appendMatch := func(e usage.Event) {
		if e.ID == "" {
			return
		}
		if clientID != "" && e.ClientID != clientID {
			return
		}
		out = append(out, e)
	}

	if s.full {
		for i := s.next; i < len(s.events); i++ {
			appendMatch(s.events[i])
		}
	}
	for i := 0; i < s.next; i++ {
		appendMatch(s.events[i])
	}

	if max > 0 && len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
