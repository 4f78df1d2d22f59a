// Package redis provides a Redis implementation of the SyncQueue port.
//
// Queued paths live in one sorted set per user, scored by the time in
// microseconds they were first added, so that several shells and batch jobs
// can share a queue. Microseconds stay exact in a float64 score.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
)

// Compile-time check that SyncQueue implements outbound.SyncQueue
var _ outbound.SyncQueue = (*SyncQueue)(nil)

// Config holds Redis queue configuration.
type Config struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string
	// Password for Redis authentication (empty for no auth)
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// TTL expires an abandoned queue. Zero means the default, a negative
	// value keeps the queue forever.
	TTL time.Duration
	// KeyPrefix is prepended to the queue key
	KeyPrefix string
	// Name identifies the queue, usually the user name.
	Name string
}

// ConfigDefaults returns sensible defaults for Redis queue configuration.
func ConfigDefaults() Config {
	return Config{
		Addr:      "localhost:6379",
		TTL:       7 * 24 * time.Hour,
		KeyPrefix: "sync",
		Name:      "default",
	}
}

// SyncQueue is a Redis implementation of the outbound.SyncQueue port.
type SyncQueue struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	lastScore int64
}

// NewSyncQueue creates a new Redis sync queue.
func NewSyncQueue(cfg Config, logger *slog.Logger) (*SyncQueue, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	defaults := ConfigDefaults()
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaults.TTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if logger == nil {
		logger = slog.Default()
	}

	return &SyncQueue{
		client: client,
		key:    fmt.Sprintf("%s:queue:%s", cfg.KeyPrefix, cfg.Name),
		ttl:    cfg.TTL,
		now:    time.Now,
		logger: logger.With("component", "redis-sync-queue"),
	}, nil
}

// Ping checks the Redis connection.
func (q *SyncQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (q *SyncQueue) Close() error {
	return q.client.Close()
}

// Key returns the sorted set holding the queue.
func (q *SyncQueue) Key() string {
	return q.key
}

// Add implements outbound.SyncQueue. Paths keep the score of their first
// insertion, which preserves order across writers.
func (q *SyncQueue) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	members := make([]redis.Z, len(paths))
	q.mu.Lock()
	score := max(q.now().UnixMicro(), q.lastScore+1)
	for i, p := range paths {
		members[i] = redis.Z{Score: float64(score), Member: p}
		score++
	}
	q.lastScore = score - 1
	q.mu.Unlock()

	pipe := q.client.TxPipeline()
	added := pipe.ZAddNX(ctx, q.key, members...)
	if q.ttl > 0 {
		pipe.Expire(ctx, q.key, q.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to queue paths: %w", err)
	}

	q.logger.Debug("queued paths", "requested", len(paths), "added", added.Val())
	return nil
}

// List implements outbound.SyncQueue.
func (q *SyncQueue) List(ctx context.Context) ([]string, error) {
	paths, err := q.client.ZRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	return paths, nil
}

// Remove implements outbound.SyncQueue.
func (q *SyncQueue) Remove(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	members := make([]any, len(paths))
	for i, p := range paths {
		members[i] = p
	}
	removed, err := q.client.ZRem(ctx, q.key, members...).Result()
	if err != nil {
		return fmt.Errorf("failed to remove paths from queue: %w", err)
	}
	q.logger.Debug("removed paths", "requested", len(paths), "removed", removed)
	return nil
}

// Clear implements outbound.SyncQueue.
func (q *SyncQueue) Clear(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}
