package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func staticIP(ip string) func(*http.Request) string {
	return func(*http.Request) string { return ip }
}

func TestLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other clients have their own bucket")
	}
	if got := rl.ActiveClients(); got != 2 {
		t.Errorf("ActiveClients() = %d, want 2", got)
	}
}

func TestCleanupRemovesIdleClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, IdleTimeout: time.Minute})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.cleanupStaleEntries(time.Now())
	if rl.ActiveClients() != 1 {
		t.Fatal("fresh client should survive cleanup")
	}

	rl.cleanupStaleEntries(time.Now().Add(2 * time.Minute))
	if rl.ActiveClients() != 0 {
		t.Fatal("idle client should be removed")
	}
}

func TestMiddlewareSetsRetryAfter(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 60, Burst: 1})
	defer rl.Stop()

	var limited bool
	h := rl.Middleware(staticIP("192.0.2.10"), func(w http.ResponseWriter, r *http.Request) {
		limited = true
		w.WriteHeader(http.StatusTooManyRequests)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if !limited || rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}
