package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/limitgate/limitgate/adapters/clock"
	"github.com/limitgate/limitgate/adapters/memory"
	"github.com/limitgate/limitgate/app"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestLimiter(t *testing.T, cfg app.LimiterConfig) (*app.LimiterService, *clock.Fake) {
	t.Helper()
	fakeClock := clock.NewFake(baseTime)
	store := memory.NewRateLimitStore()
	return app.NewLimiterService(store, fakeClock, cfg), fakeClock
}

func TestLimiter_WindowScenario(t *testing.T) {
	limiter, fakeClock := newTestLimiter(t, app.LimiterConfig{Limit: 15, Window: 10})
	ctx := context.Background()

	// Burn through the full window
	for i := 1; i <= 15; i++ {
		result, err := limiter.Evaluate(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !result.Allowed {
			t.Errorf("request %d: Allowed = false, want true", i)
		}
		if result.Remaining != 15-i {
			t.Errorf("request %d: Remaining = %d, want %d", i, result.Remaining, 15-i)
		}
	}

	// 16th request in the same window
	result, _ := limiter.Evaluate(ctx, "1.2.3.4")
	if result.Allowed {
		t.Error("16th request: Allowed = true, want false")
	}
	if result.Remaining != 0 {
		t.Errorf("16th request: Remaining = %d, want 0", result.Remaining)
	}

	// Window rolls over
	fakeClock.Advance(11 * time.Second)
	result, _ = limiter.Evaluate(ctx, "1.2.3.4")
	if !result.Allowed {
		t.Error("request after rollover: Allowed = false, want true")
	}
	if result.Remaining != 14 {
		t.Errorf("request after rollover: Remaining = %d, want 14", result.Remaining)
	}
}

func TestLimiter_EmptyClientIDUsesSharedBucket(t *testing.T) {
	limiter, _ := newTestLimiter(t, app.LimiterConfig{Limit: 2, Window: 10})
	ctx := context.Background()

	limiter.Evaluate(ctx, "")
	limiter.Evaluate(ctx, app.UnknownClientID)

	// Both charges landed in the same bucket
	result, _ := limiter.Evaluate(ctx, "")
	if result.Allowed {
		t.Error("3rd unknown request should be over limit")
	}
}

func TestLimiter_UpdateConfig(t *testing.T) {
	limiter, _ := newTestLimiter(t, app.LimiterConfig{Limit: 2, Window: 10})
	ctx := context.Background()

	limiter.Evaluate(ctx, "1.2.3.4")
	limiter.Evaluate(ctx, "1.2.3.4")
	result, _ := limiter.Evaluate(ctx, "1.2.3.4")
	if result.Allowed {
		t.Fatal("3rd request should be over limit of 2")
	}

	// Raise the limit; the existing window count carries over
	limiter.UpdateConfig(app.LimiterConfig{Limit: 10, Window: 10})

	result, _ = limiter.Evaluate(ctx, "1.2.3.4")
	if !result.Allowed {
		t.Error("request under raised limit should be allowed")
	}
	if result.Limit != 10 {
		t.Errorf("Limit = %d, want 10", result.Limit)
	}
	if result.Remaining != 6 {
		t.Errorf("Remaining = %d, want 6 (4 charged so far)", result.Remaining)
	}
}

func TestLimiter_Enforce(t *testing.T) {
	limiter, _ := newTestLimiter(t, app.LimiterConfig{Limit: 5, Window: 10, Enforce: true})

	if !limiter.Enforce() {
		t.Error("Enforce() = false, want true")
	}

	limiter.UpdateConfig(app.LimiterConfig{Limit: 5, Window: 10, Enforce: false})
	if limiter.Enforce() {
		t.Error("Enforce() = true after update, want false")
	}
}

func TestLimiter_ConcurrentSameClient(t *testing.T) {
	limiter, _ := newTestLimiter(t, app.LimiterConfig{Limit: 40, Window: 60})
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				result, err := limiter.Evaluate(ctx, "shared")
				if err != nil {
					t.Errorf("Evaluate failed: %v", err)
					return
				}
				if result.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 40 {
		t.Errorf("allowed = %d, want exactly 40", allowed)
	}
}
