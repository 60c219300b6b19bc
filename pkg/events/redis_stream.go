package events

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStreamConfig configures a RedisStreamPublisher.
type RedisStreamConfig struct {
	Stream string
	MaxLen int64
}

// RedisStreamPublisher appends events to a capped Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, cfg RedisStreamConfig) (*RedisStreamPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("events stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}, nil
}

// Publish writes e as one stream entry.
func (p *RedisStreamPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := encode(e)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id": e.ID,
			"type":     e.Type,
			"entity":   e.EntityID,
			"payload":  string(payload),
		},
	}).Err()
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisStreamPublisher) Close() error { return nil }
