package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	rl := NewRateLimiter()
	keyFunc := func(*http.Request) string { return "client" }
	h := RateLimit(rl, keyFunc, 3, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestRateLimitKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter()
	if !rl.Allow("a", 1, time.Minute) {
		t.Error("first request for key a should pass")
	}
	if rl.Allow("a", 1, time.Minute) {
		t.Error("second request for key a should be blocked")
	}
	if !rl.Allow("b", 1, time.Minute) {
		t.Error("key b should be unaffected by key a")
	}
}

func TestRealIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := RealIP(req); got != "10.0.0.1" {
		t.Errorf("RealIP = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := RealIP(req); got != "203.0.113.7" {
		t.Errorf("RealIP = %q, want first forwarded address", got)
	}
}
