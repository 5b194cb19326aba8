package ratelimit_test

import (
	"testing"
	"time"

	"github.com/limitgate/limitgate/domain/ratelimit"
)

var (
	baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	cfg      = ratelimit.Config{
		Limit:  15,
		Window: 10 * time.Second,
	}
)

func TestTake_ChargesMonotonically(t *testing.T) {
	var state ratelimit.WindowState
	var result ratelimit.Result

	for k := 1; k <= cfg.Limit; k++ {
		result, state = ratelimit.Take(state, cfg, baseTime)
		if result.Remaining != cfg.Limit-k {
			t.Errorf("request %d: remaining = %d, want %d", k, result.Remaining, cfg.Limit-k)
		}
		if !result.Allowed {
			t.Errorf("request %d should be allowed", k)
		}
	}

	if state.Count != cfg.Limit {
		t.Errorf("count = %d, want %d", state.Count, cfg.Limit)
	}
}

func TestTake_BoundaryNeverNegative(t *testing.T) {
	state := ratelimit.WindowState{
		Count:       cfg.Limit, // 15th request already charged
		WindowStart: baseTime,
	}

	result, newState := ratelimit.Take(state, cfg, baseTime.Add(time.Second))

	if result.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", result.Remaining)
	}
	if result.Allowed {
		t.Error("16th request should not be allowed")
	}
	if newState.Count != cfg.Limit+1 {
		t.Errorf("count = %d, want %d (charge regardless of outcome)", newState.Count, cfg.Limit+1)
	}
}

func TestTake_WindowRollover(t *testing.T) {
	state := ratelimit.WindowState{
		Count:       cfg.Limit,
		WindowStart: baseTime,
	}

	later := baseTime.Add(11 * time.Second)
	result, newState := ratelimit.Take(state, cfg, later)

	if result.Remaining != cfg.Limit-1 {
		t.Errorf("remaining = %d, want %d", result.Remaining, cfg.Limit-1)
	}
	if newState.Count != 1 {
		t.Errorf("count = %d, want 1 (reset then charged)", newState.Count)
	}
	if !newState.WindowStart.Equal(later) {
		t.Errorf("windowStart = %v, want %v", newState.WindowStart, later)
	}
	if !result.ResetAt.Equal(later.Add(cfg.Window)) {
		t.Errorf("resetAt = %v, want %v", result.ResetAt, later.Add(cfg.Window))
	}
}

func TestTake_RolloverAtExactBoundary(t *testing.T) {
	state := ratelimit.WindowState{
		Count:       3,
		WindowStart: baseTime,
	}

	// now - windowStart == window counts as expired
	boundary := baseTime.Add(cfg.Window)
	result, newState := ratelimit.Take(state, cfg, boundary)

	if newState.Count != 1 {
		t.Errorf("count = %d, want 1", newState.Count)
	}
	if result.Remaining != cfg.Limit-1 {
		t.Errorf("remaining = %d, want %d", result.Remaining, cfg.Limit-1)
	}
}

func TestTake_HandlesZeroState(t *testing.T) {
	result, state := ratelimit.Take(ratelimit.WindowState{}, cfg, baseTime)

	if !result.Allowed {
		t.Error("first request should be allowed")
	}
	if result.Remaining != cfg.Limit-1 {
		t.Errorf("remaining = %d, want %d", result.Remaining, cfg.Limit-1)
	}
	if !state.WindowStart.Equal(baseTime) {
		t.Errorf("windowStart = %v, want %v", state.WindowStart, baseTime)
	}
}

func TestTake_ResetAtFloorsWindowStart(t *testing.T) {
	start := baseTime.Add(750 * time.Millisecond)
	result, _ := ratelimit.Take(ratelimit.WindowState{}, cfg, start)

	want := baseTime.Unix() + 10 // floor(window_start) + window_secs
	if result.ResetAt.Unix() != want {
		t.Errorf("resetAt = %d, want %d", result.ResetAt.Unix(), want)
	}
	if !result.ResetAt.After(start.Truncate(time.Second)) {
		t.Error("resetAt must be after the window start")
	}
}

func TestTake_ConcreteScenario(t *testing.T) {
	// limit=15, window=10s, client bursts 15 requests at t=0, one at t=11s.
	var state ratelimit.WindowState
	var result ratelimit.Result

	for k := 1; k <= 15; k++ {
		result, state = ratelimit.Take(state, cfg, baseTime)
		want := 15 - k
		if result.Remaining != want {
			t.Fatalf("request %d: remaining = %d, want %d", k, result.Remaining, want)
		}
	}
	if result.Remaining != 0 {
		t.Errorf("15th request: remaining = %d, want 0", result.Remaining)
	}

	at11 := baseTime.Add(11 * time.Second)
	result, _ = ratelimit.Take(state, cfg, at11)
	if result.Remaining != 14 {
		t.Errorf("post-reset remaining = %d, want 14", result.Remaining)
	}
	if result.ResetAt.Unix() != at11.Unix()+10 {
		t.Errorf("resetAt = %d, want %d", result.ResetAt.Unix(), at11.Unix()+10)
	}
}

func TestTake_Deterministic(t *testing.T) {
	state := ratelimit.WindowState{Count: 7, WindowStart: baseTime}

	r1, s1 := ratelimit.Take(state, cfg, baseTime.Add(time.Second))
	r2, s2 := ratelimit.Take(state, cfg, baseTime.Add(time.Second))

	if r1 != r2 || s1 != s2 {
		t.Error("Take should be deterministic")
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		result ratelimit.Result
		now    time.Time
		want   int64
	}{
		{
			name:   "room left returns zero",
			result: ratelimit.Result{Remaining: 3, ResetAt: baseTime.Add(10 * time.Second)},
			now:    baseTime,
			want:   0,
		},
		{
			name:   "exhausted returns seconds to reset",
			result: ratelimit.Result{Remaining: 0, ResetAt: baseTime.Add(7 * time.Second)},
			now:    baseTime,
			want:   7,
		},
		{
			name:   "past reset returns zero",
			result: ratelimit.Result{Remaining: 0, ResetAt: baseTime.Add(-time.Second)},
			now:    baseTime,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ratelimit.RetryAfter(tt.result, tt.now)
			if got != tt.want {
				t.Errorf("RetryAfter() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHeaders_AlwaysCarriesTriple(t *testing.T) {
	result := ratelimit.Result{
		Limit:     15,
		Remaining: 9,
		Allowed:   true,
		ResetAt:   baseTime.Add(10 * time.Second),
	}

	h := ratelimit.Headers(result, baseTime)

	if h[ratelimit.HeaderLimit] != "15" {
		t.Errorf("%s = %q, want 15", ratelimit.HeaderLimit, h[ratelimit.HeaderLimit])
	}
	if h[ratelimit.HeaderRemaining] != "9" {
		t.Errorf("%s = %q, want 9", ratelimit.HeaderRemaining, h[ratelimit.HeaderRemaining])
	}
	wantReset := "1705320010" // 2024-01-15T12:00:10Z
	if h[ratelimit.HeaderReset] != wantReset {
		t.Errorf("%s = %q, want %q", ratelimit.HeaderReset, h[ratelimit.HeaderReset], wantReset)
	}
	if _, ok := h[ratelimit.HeaderRetryAfter]; ok {
		t.Error("Retry-After must be absent while the window has room")
	}
}

func TestHeaders_RetryAfterWhenExhausted(t *testing.T) {
	result := ratelimit.Result{
		Limit:     15,
		Remaining: 0,
		ResetAt:   baseTime.Add(6 * time.Second),
	}

	h := ratelimit.Headers(result, baseTime)
	if h[ratelimit.HeaderRetryAfter] != "6" {
		t.Errorf("Retry-After = %q, want 6", h[ratelimit.HeaderRetryAfter])
	}
}

func TestHeaders_RetryAfterOmittedWhenStale(t *testing.T) {
	result := ratelimit.Result{
		Limit:     15,
		Remaining: 0,
		ResetAt:   baseTime,
	}

	h := ratelimit.Headers(result, baseTime.Add(time.Second))
	if _, ok := h[ratelimit.HeaderRetryAfter]; ok {
		t.Error("Retry-After must be omitted when the reset is not in the future")
	}
}

// Benchmark to ensure the charge path stays allocation-light.
func BenchmarkTake(b *testing.B) {
	state := ratelimit.WindowState{Count: 5, WindowStart: baseTime}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ratelimit.Take(state, cfg, baseTime)
	}
}
