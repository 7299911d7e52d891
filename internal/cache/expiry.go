package cache

import "time"

const (
	ExpiryDefaultInMemory = 30 * time.Minute
	ExpiryDefaultRedis    = 5 * time.Minute
	ExpiryDefaultDynamoDB = 5 * time.Minute

	cleanupIntervalInMemory = 10 * time.Minute
)
