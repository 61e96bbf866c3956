// Package cache holds reconciled query results in Redis for a few seconds so
// bursts of identical requests do not each hit the upstream feeds.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"metrotrack/internal/domain"
)

// Snapshot is one reconciled result together with the time it was produced.
type Snapshot struct {
	Trains      []domain.TrainRecord `json:"trains"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

type Options struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how stale a served snapshot may be.
	TTL time.Duration
}

type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(opts Options, logger *slog.Logger) (*RedisCache, error) {
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("redis cache: ttl must be positive, got %s", opts.TTL)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: "metrotrack:v1:",
		ttl:    opts.TTL,
		logger: logger.With("component", "redis_cache"),
	}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Trains returns the snapshot stored under key, or nil on a miss.
func (c *RedisCache) Trains(ctx context.Context, key string) (*Snapshot, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug("cache miss", "key", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		// A snapshot from an incompatible build; drop it and recompute.
		c.client.Del(ctx, c.prefix+key)
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	c.logger.Debug("cache hit", "key", key, "age_ms", time.Since(snap.GeneratedAt).Milliseconds())
	return &snap, nil
}

func (c *RedisCache) StoreTrains(ctx context.Context, key string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	c.logger.Debug("cache set", "key", key, "trains", len(snap.Trains), "size_bytes", len(data))
	return nil
}
