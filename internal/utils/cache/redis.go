package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "rc:"
	// keyIndex is a sorted set of every cached key scored by insertion time,
	// used to enforce the key cap.
	keyIndex = keyPrefix + "index"
)

// ResponseCache stores rendered GET responses per user in redis.
type ResponseCache struct {
	client  *redis.Client
	maxKeys int64
}

type Options struct {
	Addr     string
	Password string
	DB       int
	MaxKeys  int64
}

func NewResponseCache(opts Options) (*ResponseCache, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &ResponseCache{client: client, maxKeys: opts.MaxKeys}, nil
}

func responseKey(userID, key string) string {
	return keyPrefix + userID + ":" + key
}

func userIndexKey(userID string) string {
	return keyPrefix + "user:" + userID
}

// Get returns the cached body, or ok=false on a miss.
func (c *ResponseCache) Get(ctx context.Context, userID, key string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, responseKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (c *ResponseCache) Set(ctx context.Context, userID, key string, body []byte, ttl time.Duration) error {
	full := responseKey(userID, key)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, full, body, ttl)
	pipe.SAdd(ctx, userIndexKey(userID), full)
	pipe.Expire(ctx, userIndexKey(userID), ttl)
	pipe.ZAdd(ctx, keyIndex, redis.Z{Score: float64(time.Now().UnixNano()), Member: full})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache response: %w", err)
	}
	return c.evict(ctx)
}

// evict drops the oldest entries once the index exceeds maxKeys.
func (c *ResponseCache) evict(ctx context.Context) error {
	if c.maxKeys <= 0 {
		return nil
	}
	count, err := c.client.ZCard(ctx, keyIndex).Result()
	if err != nil {
		return err
	}
	excess := count - c.maxKeys
	if excess <= 0 {
		return nil
	}
	oldest, err := c.client.ZPopMin(ctx, keyIndex, excess).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(oldest))
	for _, z := range oldest {
		if key, ok := z.Member.(string); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// InvalidateUser drops every cached response of the user.
func (c *ResponseCache) InvalidateUser(ctx context.Context, userID string) error {
	index := userIndexKey(userID)
	keys, err := c.client.SMembers(ctx, index).Result()
	if err != nil {
		return err
	}
	pipe := c.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
		members := make([]interface{}, len(keys))
		for i, k := range keys {
			members[i] = k
		}
		pipe.ZRem(ctx, keyIndex, members...)
	}
	pipe.Del(ctx, index)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *ResponseCache) Close() error {
	return c.client.Close()
}
