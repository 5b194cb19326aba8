// Package usage provides request log event types and aggregation functions.
// All functions are pure - no side effects.
package usage

import "time"

// Event represents a single gateway request (immutable value type).
type Event struct {
	ID            string
	ClientID      string // Rate limit bucket the request was charged to
	Method        string
	Path          string
	StatusCode    int
	LatencyMs     int64
	RequestBytes  int64
	ResponseBytes int64
	RemoteIP      string
	UserAgent     string
	Timestamp     time.Time
}

// NewEvent creates an event for one proxied request.
func NewEvent(id, clientID, method, path string, statusCode int, latencyMs, requestBytes, responseBytes int64, remoteIP, userAgent string, timestamp time.Time) Event {
	return Event{
		ID:            id,
		ClientID:      clientID,
		Method:        method,
		Path:          path,
		StatusCode:    statusCode,
		LatencyMs:     latencyMs,
		RequestBytes:  requestBytes,
		ResponseBytes: responseBytes,
		RemoteIP:      remoteIP,
		UserAgent:     userAgent,
		Timestamp:     timestamp,
	}
}

// IsError reports whether the request ended in a 4xx or 5xx response.
func (e Event) IsError() bool {
	return e.StatusCode >= 400
}

// Summary represents aggregated traffic for a period (value type).
type Summary struct {
	ClientID     string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	RequestCount int64
	BytesIn      int64
	BytesOut     int64
	ErrorCount   int64 // 4xx + 5xx responses
	AvgLatencyMs int64
}
