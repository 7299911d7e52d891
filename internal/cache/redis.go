package cache

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/nutriplan/nutriplan/internal/logger"
	redisClient "github.com/nutriplan/nutriplan/internal/redis"
	"github.com/redis/go-redis/v9"
)

const (
	// DeleteRetryDelay specifies how long to wait before retrying a failed delete
	DeleteRetryDelay = 100 * time.Millisecond
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisCache implements Cache using Redis. Non-string values are stored as JSON.
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisCache(client *redisClient.Client, log *logger.Logger) *RedisCache {
	return &RedisCache{
		client: client.GetClient(),
		log:    log,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Errorw("redis GET error", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = ExpiryDefaultRedis
	}

	var strValue string
	switch v := value.(type) {
	case string:
		strValue = v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			c.log.Errorw("failed to marshal cache value", "key", key, "error", err)
			return
		}
		strValue = string(b)
	}

	if err := c.client.Set(ctx, key, strValue, expiration).Err(); err != nil {
		c.log.Errorw("redis SET error", "key", key, "error", err)
	}
}

// Delete removes a key, retrying once after a short delay
func (c *RedisCache) Delete(ctx context.Context, key string) {
	err := c.client.Del(ctx, key).Err()
	if err == nil {
		return
	}

	c.log.Warnw("redis DELETE failed, retrying", "key", key, "error", err)

	select {
	case <-ctx.Done():
		return
	case <-time.After(DeleteRetryDelay):
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Errorw("redis DELETE retry failed", "key", key, "error", err)
	}
}
