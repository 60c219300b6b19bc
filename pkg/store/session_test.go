package store

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func assertSessionRoundTrip(t *testing.T, s SessionStore) {
	t.Helper()
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok || uid != "user-1" {
		t.Fatalf("lookup: uid=%q ok=%v err=%v", uid, ok, err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expected deleted session to be gone, ok=%v err=%v", ok, err)
	}
	if _, ok, err := s.GetUserIDByToken("unknown"); err != nil || ok {
		t.Fatalf("expected unknown token to miss, ok=%v err=%v", ok, err)
	}
}

func TestMemorySessionStore(t *testing.T) {
	assertSessionRoundTrip(t, NewMemorySessionStore(time.Hour))
}

func TestMemorySessionStoreExpires(t *testing.T) {
	s := NewMemorySessionStore(10 * time.Millisecond)
	token, _ := s.NewSession("user-1")
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected session to expire")
	}
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewRedisSessionStore(client, time.Hour)
	assertSessionRoundTrip(t, s)

	token, err := s.NewSession("user-2")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if !mr.Exists(sessionKeyPrefix + token) {
		t.Fatalf("expected session key in redis")
	}
	mr.FastForward(2 * time.Hour)
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected session to expire with ttl")
	}
}

func TestRedisSessionStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisSessionStore(client, time.Hour)
	mr.Close()

	if _, _, err := s.GetUserIDByToken("token"); err == nil {
		t.Fatalf("expected lookup to fail while redis is down")
	}
}

func TestJWTSessionStore(t *testing.T) {
	s, err := NewJWTSessionStore(testJWTSecret, time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	assertSessionRoundTrip(t, s)
}

func TestJWTSessionStoreRejectsForeignSignature(t *testing.T) {
	a, _ := NewJWTSessionStore(testJWTSecret, time.Hour, nil)
	b, _ := NewJWTSessionStore(strings.Repeat("z", 32), time.Hour, nil)

	token, err := a.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, err := b.GetUserIDByToken(token); err != nil || ok {
		t.Fatalf("expected foreign token to be rejected, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := a.GetUserIDByToken(token + "x"); ok {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestJWTSessionStoreExpired(t *testing.T) {
	s, _ := NewJWTSessionStore(testJWTSecret, -time.Hour, nil)
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestJWTSessionStoreRequiresSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour, nil); err == nil {
		t.Fatalf("expected short secret to be rejected")
	}
}
