package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"foodshare/internal/ratelimit"
)

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(rdb, "test:login", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}

	ts := newTestServer(t, func(cfg *Config) { cfg.LoginLimiter = limiter })

	body := `{"username":"nobody","password":"pw"}`
	resp1, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("first login request failed: %v", err)
	}
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusForbidden {
		t.Fatalf("first request expected 403 for bad credentials, got %d", resp1.StatusCode)
	}

	resp2, err := http.Post(ts.URL+"/api/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("second login request failed: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", resp2.StatusCode)
	}
	if resp2.Header.Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After header, got %q", resp2.Header.Get("Retry-After"))
	}
}

func TestSignupRateLimitIsPerClientIP(t *testing.T) {
	limiter, err := ratelimit.NewLocalLimiter(1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	ts := newTestServer(t, func(cfg *Config) { cfg.SignupLimiter = limiter })

	for i, want := range []int{http.StatusCreated, http.StatusTooManyRequests} {
		body := `{"username":"user` + string(rune('a'+i)) + `","password":"pw","role":"Recipient"}`
		resp, err := http.Post(ts.URL+"/api/users", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("register %d: status %d, want %d", i, resp.StatusCode, want)
		}
	}
}
