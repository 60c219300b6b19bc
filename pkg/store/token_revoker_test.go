package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryTokenRevokerLapsesAtExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewMemoryTokenRevoker()
	r.now = func() time.Time { return now }

	if err := r.Revoke("jti-1", now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := r.Revoke("jti-old", now.Add(-time.Second)); err != nil {
		t.Fatalf("revoke past: %v", err)
	}
	if revoked, _ := r.IsRevoked("jti-1"); !revoked {
		t.Fatalf("expected jti-1 revoked")
	}
	if revoked, _ := r.IsRevoked("jti-old"); revoked {
		t.Fatalf("an already expired token needs no revocation entry")
	}

	now = now.Add(time.Minute)
	if revoked, _ := r.IsRevoked("jti-1"); revoked {
		t.Fatalf("revocation must lapse when the token expires")
	}
	_ = r.Revoke("jti-2", now.Add(time.Hour))
	if len(r.revoked) != 1 {
		t.Fatalf("expected lapsed entries swept, have %d", len(r.revoked))
	}
}

func TestJWTLogoutRevokesThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	// two replicas share revocations through Redis
	a, err := NewJWTSessionStore(testJWTSecret, time.Hour, NewRedisTokenRevoker(client))
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	b, err := NewJWTSessionStore(testJWTSecret, time.Hour, NewRedisTokenRevoker(client))
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}

	token, err := a.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if uid, ok, err := b.GetUserIDByToken(token); err != nil || !ok || uid != "user-1" {
		t.Fatalf("replica lookup before logout: %q %v %v", uid, ok, err)
	}
	if err := a.DeleteSession(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok, err := b.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("replica must see the logout, ok=%v err=%v", ok, err)
	}

	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one revocation key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl <= 59*time.Minute || ttl > time.Hour {
		t.Fatalf("revocation should live as long as the token, ttl=%v", ttl)
	}

	mr.SetError("LOADING")
	if _, _, err := b.GetUserIDByToken(token); err == nil {
		t.Fatalf("expected an error while redis is down")
	}
}
