package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"mutualpool/internal/platform/config"
)

// Client wraps the go-redis client with health checking and pool metrics.
type Client struct {
	*redis.Client
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
	timeouts   prometheus.Gauge
}

// New creates a new Redis client from the provided configuration.
// Returns nil if the URL is empty (Redis not configured).
func New(cfg config.Redis, reg prometheus.Registerer) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return Wrap(client, reg), nil
}

// Wrap attaches pool metrics to an existing go-redis client.
func Wrap(client *redis.Client, reg prometheus.Registerer) *Client {
	f := promauto.With(reg)
	return &Client{
		Client: client,
		totalConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "mutualpool_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		idleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "mutualpool_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
		timeouts: f.NewGauge(prometheus.GaugeOpts{
			Name: "mutualpool_redis_pool_timeouts",
			Help: "Cumulative number of pool wait timeouts",
		}),
	}
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// RecordPoolStats copies current pool statistics into the gauges.
// Call periodically from a background goroutine.
func (c *Client) RecordPoolStats() {
	stats := c.PoolStats()
	c.totalConns.Set(float64(stats.TotalConns))
	c.idleConns.Set(float64(stats.IdleConns))
	c.timeouts.Set(float64(stats.Timeouts))
}
