package http

import (
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestRateLimiter_RejectsBeyondBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: rate.Limit(0.5), Burst: 2}, zap.NewNop())
	defer rl.Stop()

	s := newTestServer(t, rl)

	for i := 0; i < 2; i++ {
		status, _ := s.do(stdhttp.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
		if status == stdhttp.StatusTooManyRequests {
			t.Fatalf("request %d limited within burst", i)
		}
	}

	req := httptest.NewRequest(stdhttp.MethodGet, "/api/ideas", nil)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get(fiber.HeaderRetryAfter); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	status, env := s.do(stdhttp.MethodGet, "/api/ideas", "", nil)
	expectError(t, status, env, stdhttp.StatusTooManyRequests, "RATE_LIMITED")

	// Health checks sit outside /api and are never limited.
	if status, _ := s.do(stdhttp.MethodGet, "/health/live", "", nil); status != stdhttp.StatusOK {
		t.Errorf("health status = %d", status)
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute}, zap.NewNop())
	defer rl.Stop()

	rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")
	if rl.Size() != 2 {
		t.Fatalf("size = %d, want 2", rl.Size())
	}

	rl.evictIdle(time.Now().Add(time.Minute))
	if rl.Size() != 2 {
		t.Fatalf("recent buckets evicted, size = %d", rl.Size())
	}

	rl.evictIdle(time.Now().Add(3 * time.Minute))
	if rl.Size() != 0 {
		t.Fatalf("idle buckets kept, size = %d", rl.Size())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1}, zap.NewNop())
	rl.Stop()
	rl.Stop()
}
