package cache

import (
	"context"
	"time"
)

// Cache is a best-effort key/value store. Implementations log and swallow
// backend failures: a failed Get is a miss and a failed Set is dropped.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
	Delete(ctx context.Context, key string)
}

// CacheType represents the backend of a cache
type CacheType string

const (
	CacheTypeInMemory CacheType = "memory"
	CacheTypeRedis    CacheType = "redis"
	CacheTypeDynamoDB CacheType = "dynamodb"
)
