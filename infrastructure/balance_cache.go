package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fundsledger/domain/entities"

	"github.com/redis/go-redis/v9"
)

const balanceCacheNamespace = "ledger:funds"

// RedisBalanceCache keeps serialized UserFunds snapshots in Redis for a short TTL
type RedisBalanceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisBalanceCache creates a cache over an existing client
func NewRedisBalanceCache(client redis.UniversalClient, ttl time.Duration) *RedisBalanceCache {
	return &RedisBalanceCache{client: client, ttl: ttl}
}

// NewRedisClient creates a single-node client
func NewRedisClient(addr, password string, db int) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func balanceKey(userID string) string {
	return balanceCacheNamespace + ":" + userID
}

// Get returns the cached funds, or nil on a miss
func (c *RedisBalanceCache) Get(ctx context.Context, userID string) (*entities.UserFunds, error) {
	raw, err := c.client.Get(ctx, balanceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached funds for user %s: %w", userID, err)
	}

	var funds entities.UserFunds
	if err := json.Unmarshal(raw, &funds); err != nil {
		return nil, fmt.Errorf("failed to decode cached funds for user %s: %w", userID, err)
	}
	return &funds, nil
}

// Set stores a snapshot of funds
func (c *RedisBalanceCache) Set(ctx context.Context, funds *entities.UserFunds) error {
	raw, err := json.Marshal(funds)
	if err != nil {
		return fmt.Errorf("failed to encode funds for user %s: %w", funds.UserID, err)
	}
	if err := c.client.Set(ctx, balanceKey(funds.UserID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache funds for user %s: %w", funds.UserID, err)
	}
	return nil
}

// Invalidate drops the snapshots of every given user
func (c *RedisBalanceCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, balanceKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached funds: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *RedisBalanceCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying client
func (c *RedisBalanceCache) Close() error {
	return c.client.Close()
}
