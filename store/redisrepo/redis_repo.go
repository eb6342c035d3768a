// Package redisrepo persists session material in Redis so several client
// processes on one host can share a login.
package redisrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/store"
	"github.com/redis/go-redis/v9"
)

var _ store.BatchRepo = (*RedisRepo)(nil)

type RedisRepo struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *RedisRepo {
	return &RedisRepo{client: client}
}

// NewFromConfig dials Redis using the store configuration and checks the connection.
func NewFromConfig(ctx context.Context, cfg config.StoreConfig) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetRedisAddr(),
		Password: cfg.GetRedisPassword(),
		DB:       cfg.GetRedisDB(),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.GetRedisAddr(), err)
	}
	return New(client), nil
}

func (r *RedisRepo) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisRepo) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisRepo) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// SetAll writes every entry in one MULTI/EXEC transaction
func (r *RedisRepo) SetAll(ctx context.Context, entries []store.Entry) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.Key, e.Value, 0)
		}
		return nil
	})
	return err
}

// DeleteAll removes every key in one MULTI/EXEC transaction
func (r *RedisRepo) DeleteAll(ctx context.Context, keys []string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, k)
		}
		return nil
	})
	return err
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}
