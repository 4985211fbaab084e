//go:build integration

// Package containers starts the ledger's backing services for integration
// tests. Each container is started at most once per test binary and shared
// by every suite; Ryuk removes them when the process exits.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"
)

const startupTimeout = 2 * time.Minute

// shared starts a resource on first use and remembers the outcome, so a
// broken Docker daemon fails every suite quickly instead of retrying.
type shared[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (s *shared[T]) get(t *testing.T, name string, start func(context.Context) (T, error)) T {
	t.Helper()
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()
		s.val, s.err = start(ctx)
	})
	if s.err != nil {
		t.Fatalf("start %s container: %v", name, s.err)
	}
	return s.val
}

type Manager struct {
	postgres shared[*PostgresContainer]
	redis    shared[*RedisContainer]
	kafka    shared[*KafkaContainer]
}

var manager = &Manager{}

// GetManager returns the process-wide manager.
func GetManager() *Manager {
	return manager
}

// GetPostgres returns a Postgres instance with every ledger migration applied.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, "postgres", startPostgres)
}

// GetRedis returns the Redis instance backing the asset registry adapter.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, "redis", startRedis)
}

// GetKafka returns a Kafka-protocol broker for outbox relay tests.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, "kafka", startKafka)
}
