package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"txDecoder/internal/model"
)

const (
	redisKeyPrefix  = "txdecoder:token:"
	defaultRedisTTL = 24 * time.Hour
)

// RedisConfig configures the shared token metadata cache.
type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

// RedisCache shares token metadata between decoder runs.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to redis. An empty address disables the cache and returns nil.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultRedisTTL
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, address common.Address) (model.TokenMeta, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.TokenMeta{}, false, nil
		}
		return model.TokenMeta{}, false, err
	}
	var meta model.TokenMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return model.TokenMeta{}, false, fmt.Errorf("parse cached token: %w", err)
	}
	return meta, true, nil
}

func (c *RedisCache) Set(ctx context.Context, address common.Address, meta model.TokenMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	return c.client.Set(ctx, redisKey(address), raw, c.ttl).Err()
}

func redisKey(address common.Address) string {
	return redisKeyPrefix + address.Hex()
}
