package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func newLimitedHandler(cfg RateLimitConfig, clock *testClock) (echo.HandlerFunc, *rateLimiterStore) {
	store := newRateLimiterStore(cfg)
	store.now = clock.Now
	store.lastSweep = clock.t
	h := rateLimit(store)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return h, store
}

func doLimited(e *echo.Echo, h echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinBurst(t *testing.T) {
	clock := &testClock{t: time.Unix(1700000000, 0)}
	h, _ := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}, clock)
	e := echo.New()

	for i := 0; i < 5; i++ {
		rec, err := doLimited(e, h, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	clock := &testClock{t: time.Unix(1700000000, 0)}
	h, _ := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}, clock)
	e := echo.New()

	for i := 0; i < 2; i++ {
		if _, err := doLimited(e, h, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}

	rec, err := doLimited(e, h, "10.0.0.1")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_Refill(t *testing.T) {
	clock := &testClock{t: time.Unix(1700000000, 0)}
	h, _ := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 1}, clock)
	e := echo.New()

	if _, err := doLimited(e, h, "10.0.0.1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := doLimited(e, h, "10.0.0.1"); err == nil {
		t.Fatal("expected second request to be limited")
	}

	clock.t = clock.t.Add(600 * time.Millisecond)
	if _, err := doLimited(e, h, "10.0.0.1"); err != nil {
		t.Errorf("expected refill after 600ms, got %v", err)
	}
}

func TestRateLimit_PerClient(t *testing.T) {
	clock := &testClock{t: time.Unix(1700000000, 0)}
	h, _ := newLimitedHandler(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}, clock)
	e := echo.New()

	if _, err := doLimited(e, h, "10.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if _, err := doLimited(e, h, "10.0.0.2"); err != nil {
		t.Errorf("expected independent bucket for second client, got %v", err)
	}
}

func TestRateLimit_Skipper(t *testing.T) {
	clock := &testClock{t: time.Unix(1700000000, 0)}
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		Skipper:           func(echo.Context) bool { return true },
	}
	h, store := newLimitedHandler(cfg, clock)
	e := echo.New()

	for i := 0; i < 5; i++ {
		if _, err := doLimited(e, h, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected skipper to bypass, got %v", i+1, err)
		}
	}
	if store.size() != 0 {
		t.Errorf("expected no buckets for skipped requests, got %d", store.size())
	}
}

func TestRateLimit_IdleEviction(t *testing.T) {
	clock := &testClock{t: time.Unix(1700000000, 0)}
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute}
	h, store := newLimitedHandler(cfg, clock)
	e := echo.New()

	_, _ = doLimited(e, h, "10.0.0.1")
	_, _ = doLimited(e, h, "10.0.0.2")
	if store.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", store.size())
	}

	clock.t = clock.t.Add(2 * time.Minute)
	_, _ = doLimited(e, h, "10.0.0.3")
	if store.size() != 1 {
		t.Errorf("expected idle buckets evicted, got %d", store.size())
	}
}
