//go:build integration

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaContainer wraps a Kafka-compatible broker used to verify event publication.
type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   []string
}

// startKafka runs Redpanda, which speaks the Kafka protocol and boots far
// faster than a broker plus controller. Topics are auto-created.
func startKafka(ctx context.Context) (*KafkaContainer, error) {
	container, err := redpanda.Run(ctx,
		"docker.redpanda.com/redpandadata/redpanda:v24.2.4",
		redpanda.WithAutoCreateTopics(),
	)
	if err != nil {
		return nil, err
	}
	broker, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, fmt.Errorf("seed broker: %w", err)
	}
	return &KafkaContainer{Container: container, Brokers: []string{broker}}, nil
}

// CreateTopic creates a single-replica topic.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string, partitions int32) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers...))
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := kadm.NewClient(client).CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return err
	}
	if r, ok := resp[topic]; ok && r.Err != nil {
		return fmt.Errorf("create topic %s: %w", topic, r.Err)
	}
	return nil
}

// ReadRecords consumes topic from the start until want records arrive or timeout elapses.
func (k *KafkaContainer) ReadRecords(ctx context.Context, topic string, want int, timeout time.Duration) ([]*kgo.Record, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(k.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out []*kgo.Record
	for len(out) < want {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		fetches.EachRecord(func(r *kgo.Record) {
			out = append(out, r)
		})
	}
	return out, nil
}
