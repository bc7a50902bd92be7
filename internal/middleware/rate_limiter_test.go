package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterAllowWithinBurst(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
		IdleTTL:           time.Minute,
	})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if rl.Allow("client-a") {
		t.Fatal("request beyond burst should be denied")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
		IdleTTL:           time.Minute,
	})
	defer rl.Stop()

	if !rl.Allow("client-a") {
		t.Fatal("first request from client-a should be allowed")
	}
	if rl.Allow("client-a") {
		t.Fatal("second request from client-a should be denied")
	}
	if !rl.Allow("client-b") {
		t.Fatal("client-b should not be affected by client-a")
	}
}

func TestRateLimiterCleanupRemovesIdleClients(t *testing.T) {
	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   20 * time.Millisecond,
		IdleTTL:           10 * time.Millisecond,
	})
	defer rl.Stop()

	rl.Allow("client-a")
	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("expected 1 active client, got %d", got)
	}

	time.Sleep(100 * time.Millisecond)

	if got := rl.ActiveClients(); got != 0 {
		t.Fatalf("expected idle client to be cleaned up, got %d", got)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
		IdleTTL:           time.Minute,
	})
	defer rl.Stop()

	r := gin.New()
	r.Use(RateLimitMiddleware(rl))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", second.Code)
	}
	if !strings.Contains(second.Body.String(), `"success":false`) {
		t.Fatalf("429 body should carry success=false, got %s", second.Body.String())
	}
}
