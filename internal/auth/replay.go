package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers consumed passcode tokens until they expire.
type ReplayGuard interface {
	// Consume marks id as used. It returns false if id was already used.
	Consume(ctx context.Context, id string, expiresAt, now time.Time) (bool, error)
}

// MemoryReplayGuard keeps consumed ids in process memory.
type MemoryReplayGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{seen: make(map[string]time.Time)}
}

func (g *MemoryReplayGuard) Consume(_ context.Context, id string, expiresAt, now time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for k, until := range g.seen {
		if now.After(until) {
			delete(g.seen, k)
		}
	}

	if _, used := g.seen[id]; used {
		return false, nil
	}
	g.seen[id] = expiresAt
	return true, nil
}

// Len reports how many ids are currently remembered.
func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

const replayKeyPrefix = "sitegate:otp:"

// RedisReplayGuard shares consumed ids across server instances.
type RedisReplayGuard struct {
	client *redis.Client
}

// NewRedisReplayGuard connects using a redis:// URL and pings the server.
func NewRedisReplayGuard(ctx context.Context, url string) (*RedisReplayGuard, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisReplayGuard{client: client}, nil
}

func (g *RedisReplayGuard) Consume(ctx context.Context, id string, expiresAt, now time.Time) (bool, error) {
	ttl := expiresAt.Sub(now)
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume otp id: %w", err)
	}
	return ok, nil
}

// Close releases the Redis connection pool.
func (g *RedisReplayGuard) Close() error {
	return g.client.Close()
}
