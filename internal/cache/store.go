package cache

import (
	"context"

	"github.com/nutriplan/nutriplan/internal/config"
	ierr "github.com/nutriplan/nutriplan/internal/errors"
	"github.com/nutriplan/nutriplan/internal/logger"
	redisClient "github.com/nutriplan/nutriplan/internal/redis"
)

// NewTokenStore builds the durable token cache selected by token_store.type.
// The returned close func releases the backend connection.
func NewTokenStore(ctx context.Context, cfg *config.Configuration, log *logger.Logger) (Cache, func() error, error) {
	noop := func() error { return nil }

	switch CacheType(cfg.TokenStore.Type) {
	case CacheTypeInMemory, "":
		log.Warnw("token store is process local, tokens are not shared between instances")
		return NewInMemoryCache(), noop, nil

	case CacheTypeRedis:
		client, err := redisClient.NewClient(cfg.Redis, log)
		if err != nil {
			return nil, nil, ierr.WithError(err).
				WithHint("Failed to connect to the redis token store").
				Mark(ierr.ErrSystem)
		}
		return NewRedisCache(client, log), client.Close, nil

	case CacheTypeDynamoDB:
		if cfg.DynamoDB.TableName == "" {
			return nil, nil, ierr.NewError("dynamodb table name is required").
				WithHint("Set dynamodb.table_name when token_store.type is dynamodb").
				Mark(ierr.ErrValidation)
		}
		client, err := NewDynamoDBClient(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, nil, ierr.WithError(err).
				WithHint("Failed to configure the dynamodb token store").
				Mark(ierr.ErrSystem)
		}
		return NewDynamoDBCache(client, cfg.DynamoDB.TableName, log), noop, nil

	default:
		return nil, nil, ierr.NewErrorf("unknown token store type %q", cfg.TokenStore.Type).
			WithHint("token_store.type must be one of memory, redis, dynamodb").
			Mark(ierr.ErrValidation)
	}
}
