package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/infrastructure/config"
)

// Cache is a JSON read-through cache over redis. Used for resolved
// harvesting settings and relationship-graph lookups, both of which are
// read-heavy and change rarely. Every failure degrades to a cache miss.
type Cache struct {
	client     *redis.Client
	logger     *zap.Logger
	prefix     string
	defaultTTL time.Duration
}

// New connects to redis and returns a Cache, or an error when redis is
// unreachable. Callers may run without a cache by passing nil around.
func New(cfg config.RedisConfig, logger *zap.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := time.Duration(cfg.CacheTTL) * time.Second
	if ttl == 0 {
		ttl = 5 * time.Minute
	}

	return &Cache{
		client:     client,
		logger:     logger,
		prefix:     "advisory:",
		defaultTTL: ttl,
	}, nil
}

// GetJSON loads key into dest. Returns false on miss or any redis/decode
// failure.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}

	val, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.logger.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}

	return true
}

// SetJSON stores value under key with the default TTL. Best effort.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}) {
	if c == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.defaultTTL).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes key. Best effort.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("cache del failed", zap.String("key", key), zap.Error(err))
	}
}

// Close releases the redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
