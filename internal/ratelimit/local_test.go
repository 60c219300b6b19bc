package ratelimit

import (
	"testing"
	"time"
)

func TestLocalLimiterBurstPerKey(t *testing.T) {
	limiter, err := NewLocalLimiter(2, time.Minute)
	if err != nil {
		t.Fatalf("new local limiter: %v", err)
	}
	if !limiter.Allow("ip-1") || !limiter.Allow("ip-1") {
		t.Fatalf("burst of two should pass")
	}
	if limiter.Allow("ip-1") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("ip-2") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestLocalLimiterRejectsBadConfig(t *testing.T) {
	if _, err := NewLocalLimiter(0, time.Minute); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := NewLocalLimiter(1, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
	var nilLimiter *LocalLimiter
	if nilLimiter.Allow("x") {
		t.Fatalf("nil limiter must deny")
	}
}
