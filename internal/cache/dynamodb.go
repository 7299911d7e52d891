package cache

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nutriplan/nutriplan/internal/config"
	"github.com/nutriplan/nutriplan/internal/logger"
)

// DynamoDBAPI is the subset of the DynamoDB client the cache needs
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// dynamoItem is one row of the cache table. expires_at is configured as the
// table's TTL attribute; items past it are also filtered on read because
// DynamoDB deletes expired items lazily.
type dynamoItem struct {
	PK        string `dynamodbav:"pk"`
	Value     string `dynamodbav:"value"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoDBCache implements Cache on a DynamoDB table keyed by "pk"
type DynamoDBCache struct {
	client DynamoDBAPI
	table  string
	log    *logger.Logger
	now    func() time.Time
}

// NewDynamoDBClient builds a DynamoDB client from configuration. Static
// credentials are used when provided, otherwise the default AWS chain.
func NewDynamoDBClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func NewDynamoDBCache(client DynamoDBAPI, table string, log *logger.Logger) *DynamoDBCache {
	return &DynamoDBCache{
		client: client,
		table:  table,
		log:    log,
		now:    time.Now,
	}
}

func (c *DynamoDBCache) Get(ctx context.Context, key string) (interface{}, bool) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.table),
		Key:            map[string]dynamotypes.AttributeValue{"pk": &dynamotypes.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		c.log.Errorw("dynamodb GetItem error", "key", key, "table", c.table, "error", err)
		return nil, false
	}
	if len(out.Item) == 0 {
		return nil, false
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		c.log.Errorw("failed to unmarshal dynamodb cache item", "key", key, "error", err)
		return nil, false
	}
	if item.ExpiresAt > 0 && c.now().Unix() >= item.ExpiresAt {
		return nil, false
	}

	return item.Value, true
}

func (c *DynamoDBCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = ExpiryDefaultDynamoDB
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

	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:        key,
		Value:     strValue,
		ExpiresAt: c.now().Add(expiration).Unix(),
	})
	if err != nil {
		c.log.Errorw("failed to marshal dynamodb cache item", "key", key, "error", err)
		return
	}

	if _, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	}); err != nil {
		c.log.Errorw("dynamodb PutItem error", "key", key, "table", c.table, "error", err)
	}
}

func (c *DynamoDBCache) Delete(ctx context.Context, key string) {
	if _, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.table),
		Key:       map[string]dynamotypes.AttributeValue{"pk": &dynamotypes.AttributeValueMemberS{Value: key}},
	}); err != nil {
		c.log.Errorw("dynamodb DeleteItem error", "key", key, "table", c.table, "error", err)
	}
}
