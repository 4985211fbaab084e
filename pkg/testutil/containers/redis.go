//go:build integration

package containers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func startRedis(ctx context.Context) (*RedisContainer, error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, err
	}
	rc, err := connectRedis(ctx, container)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}
	return rc, nil
}

func connectRedis(ctx context.Context, container *tcredis.RedisContainer) (*RedisContainer, error) {
	url, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &RedisContainer{Container: container, URL: url, Client: client}, nil
}

// FlushAll drops every key so suites start from an empty registry.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
