// Package ratelimit provides pure fixed-window rate limiting.
// All functions are deterministic - same input always produces same output.
package ratelimit

import (
	"strconv"
	"time"
)

// WindowState is the per-client accounting record (value type).
type WindowState struct {
	Count       int       // Requests charged in the current window
	WindowStart time.Time // When the current window opened
}

// Config holds rate limit configuration (value type).
type Config struct {
	Limit  int           // Requests per window
	Window time.Duration // Window duration
}

// Result is the outcome of charging one request (value type).
type Result struct {
	Limit     int       // Configured window limit
	Remaining int       // Requests left in the window after this charge
	Allowed   bool      // False once the window is over its limit
	ResetAt   time.Time // When the current window's counter resets
}

// Standard rate limit headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Take charges one request against the window and returns the decision.
// This is a PURE function - no side effects, deterministic.
//
// The window is fixed, anchored at the first request: when it has elapsed
// (now - WindowStart >= Window) the counter resets and a new window opens at
// now. A burst straddling the boundary can admit up to 2x the limit across
// two adjacent windows; that is the accepted fixed-window trade-off.
//
// The charge always happens, whether or not the request later succeeds
// downstream, so the k-th request of a window reports Remaining = limit - k
// (never negative). Callers must persist the returned state.
func Take(state WindowState, cfg Config, now time.Time) (Result, WindowState) {
	if state.WindowStart.IsZero() || now.Sub(state.WindowStart) >= cfg.Window {
		state = WindowState{Count: 0, WindowStart: now}
	}

	state.Count++

	remaining := cfg.Limit - state.Count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Limit:     cfg.Limit,
		Remaining: remaining,
		Allowed:   state.Count <= cfg.Limit,
		// Reset is reported in whole unix seconds, so anchor it to the
		// floored window start.
		ResetAt: time.Unix(state.WindowStart.Unix(), 0).Add(cfg.Window),
	}, state
}

// RetryAfter returns how long a client should wait before retrying, in whole
// seconds. Returns 0 when the window still has room or the reset is already
// in the past.
// This is a PURE function.
func RetryAfter(r Result, now time.Time) int64 {
	if r.Remaining > 0 {
		return 0
	}
	secs := r.ResetAt.Unix() - now.Unix()
	if secs < 0 {
		return 0
	}
	return secs
}

// Headers renders the standard rate limit headers for a decision.
// Limit, Remaining and Reset are always present; Retry-After only when the
// window is exhausted and the reset lies in the future.
// This is a PURE function.
func Headers(r Result, now time.Time) map[string]string {
	h := map[string]string{
		HeaderLimit:     strconv.Itoa(r.Limit),
		HeaderRemaining: strconv.Itoa(r.Remaining),
		HeaderReset:     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
	if r.Remaining == 0 {
		if secs := RetryAfter(r, now); secs > 0 {
			h[HeaderRetryAfter] = strconv.FormatInt(secs, 10)
		}
	}
	return h
}
