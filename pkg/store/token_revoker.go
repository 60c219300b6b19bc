package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenRevoker remembers logged-out session token ids (jti) until the token
// would have expired on its own.
type TokenRevoker interface {
	Revoke(jti string, until time.Time) error
	IsRevoked(jti string) (bool, error)
}

// MemoryTokenRevoker is a single-process revoker.
type MemoryTokenRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryTokenRevoker() *MemoryTokenRevoker {
	return &MemoryTokenRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke records jti until the given instant. Instants already past are ignored.
// Lapsed entries are swept on every call.
func (r *MemoryTokenRevoker) Revoke(jti string, until time.Time) error {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, exp := range r.revoked {
		if !exp.After(now) {
			delete(r.revoked, id)
		}
	}
	if until.After(now) {
		r.revoked[jti] = until
	}
	return nil
}

func (r *MemoryTokenRevoker) IsRevoked(jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.revoked[jti]
	return ok && until.After(r.now()), nil
}

// RedisTokenRevoker shares revocations between replicas; entries expire with
// the token.
type RedisTokenRevoker struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisTokenRevoker(client *redis.Client) *RedisTokenRevoker {
	return &RedisTokenRevoker{client: client, timeout: 3 * time.Second}
}

func (r *RedisTokenRevoker) Revoke(jti string, until time.Time) error {
	if r == nil || r.client == nil {
		return errors.New("redis revoker not configured")
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

func (r *RedisTokenRevoker) IsRevoked(jti string) (bool, error) {
	if r == nil || r.client == nil {
		return false, errors.New("redis revoker not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	n, err := r.client.Exists(ctx, revocationKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func revocationKey(jti string) string {
	return "foodshare:session:revoked:" + jti
}
