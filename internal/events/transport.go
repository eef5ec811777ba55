package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/veloride/settlement-core/internal/domain/model"
)

// Transport publishes settlement events to downstream consumers.
type Transport interface {
	Publish(ctx context.Context, ev model.OutboxEvent) error
	Close() error
}

// RedisTransport publishes events onto a Redis stream. Consumers read
// with XREADGROUP, so delivery is at-least-once end to end.
type RedisTransport struct {
	client *redis.Client
	stream string
	maxLen int64
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	MaxLen   int64
}

func NewRedisTransport(ctx context.Context, cfg RedisConfig) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &RedisTransport{client: client, stream: cfg.Stream, maxLen: maxLen}, nil
}

func (t *RedisTransport) Publish(ctx context.Context, ev model.OutboxEvent) error {
	err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.stream,
		MaxLen: t.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":      ev.ID.String(),
			"kind":    string(ev.Kind),
			"key":     ev.Key,
			"payload": string(ev.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", t.stream, err)
	}
	return nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

// InMemoryTransport collects published events in memory. Used in tests
// and for single-process deployments without Redis.
type InMemoryTransport struct {
	mu      sync.Mutex
	entries []model.OutboxEvent
}

func NewInMemoryTransport() *InMemoryTransport {
	return &InMemoryTransport{}
}

func (t *InMemoryTransport) Publish(_ context.Context, ev model.OutboxEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, ev)
	return nil
}

func (t *InMemoryTransport) Entries() []model.OutboxEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.OutboxEvent, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *InMemoryTransport) Close() error { return nil }
