// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"visa-portal/internal/common/config"
)

// RedisClient owns the connection pool behind the redis storage driver.
type RedisClient struct {
	Client *redis.Client
}

// redisOptions maps storage config onto the go-redis pool. Zero values keep the
// go-redis defaults.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
}

// NewRedis builds the pool without dialing; call Ping to verify it.
func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	return &RedisClient{Client: redis.NewClient(redisOptions(cfg))}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
