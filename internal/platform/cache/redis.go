package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "token:"

// RedisCache implements TokenCache on a go-redis client, storing entries as
// JSON under "token:<hash>" keys.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, hash string) (*Entry, error) {
	raw, err := c.client.Get(ctx, tokenKeyPrefix+hash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is a miss; the store will repopulate it.
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &entry, nil
}

func (c *RedisCache) Set(ctx context.Context, hash string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, tokenKeyPrefix+hash, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, hash string) error {
	if err := c.client.Del(ctx, tokenKeyPrefix+hash).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
