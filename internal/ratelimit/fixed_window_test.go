package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestFixedWindowLimiterRedis(t *testing.T) {
	_, client := newRedisClient(t)
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	if !limiter.Allow("ip-1") {
		t.Fatalf("first request should pass")
	}
	if !limiter.Allow("ip-1") {
		t.Fatalf("second request should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	mr, client := newRedisClient(t)
	limiter, err := NewRedisFixedWindowLimiter(client, "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	mr.Close()
	if limiter.Allow("ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresClient(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter(nil, "test:ratelimit", 1, time.Second)
	if err == nil {
		t.Fatalf("expected missing client to fail")
	}
	if limiter != nil {
		t.Fatalf("expected nil limiter on error")
	}
}

func TestLocalLimiter(t *testing.T) {
	limiter, err := NewLocalLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("new local limiter: %v", err)
	}
	if !limiter.Allow("ip-1") || !limiter.Allow("ip-1") {
		t.Fatalf("burst should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
	if _, err := NewLocalLimiter(0, time.Minute); err == nil {
		t.Fatalf("expected zero limit to fail")
	}
}

func TestNilLimitersFailClosed(t *testing.T) {
	var fw *FixedWindowLimiter
	var local *LocalLimiter
	for _, l := range []Limiter{fw, local} {
		if l.Allow("ip-1") {
			t.Fatalf("nil limiter must fail closed")
		}
	}
}
