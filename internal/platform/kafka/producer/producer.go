// Package producer publishes ledger events to Kafka with franz-go.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrClosed is returned by Produce after Close.
var ErrClosed = errors.New("kafka producer is closed")

const closeFlushTimeout = 30 * time.Second

// Message is one record destined for the ledger events topic.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

type Config struct {
	Brokers         string
	ClientID        string
	Acks            string // "0", "1" or "all"
	Retries         int
	Linger          time.Duration
	DeliveryTimeout time.Duration
	// Compression is "none", "lz4", "zstd" or "snappy". Empty means snappy.
	Compression string
}

// DefaultConfig favours durability: all-ISR acks with idempotent writes, so
// a retried outbox entry does not appear twice in a partition.
func DefaultConfig(brokers string) Config {
	return Config{
		Brokers:         brokers,
		ClientID:        "mutualpool",
		Acks:            "all",
		Retries:         3,
		Linger:          5 * time.Millisecond,
		DeliveryTimeout: 30 * time.Second,
		Compression:     "snappy",
	}
}

// Producer is safe for concurrent use.
type Producer struct {
	client *kgo.Client
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func New(cfg Config, logger *slog.Logger) (*Producer, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

func (cfg Config) options() ([]kgo.Opt, error) {
	brokers := splitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RecordRetries(cfg.Retries),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.Linger > 0 {
		opts = append(opts, kgo.ProducerLinger(cfg.Linger))
	}
	if cfg.DeliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	switch cfg.Acks {
	case "0":
		opts = append(opts, kgo.RequiredAcks(kgo.NoAck()), kgo.DisableIdempotentWrite())
	case "1":
		opts = append(opts, kgo.RequiredAcks(kgo.LeaderAck()), kgo.DisableIdempotentWrite())
	case "", "all", "-1":
		opts = append(opts, kgo.RequiredAcks(kgo.AllISRAcks()))
	default:
		return nil, fmt.Errorf("unsupported acks %q", cfg.Acks)
	}

	codec, err := compression(cfg.Compression)
	if err != nil {
		return nil, err
	}
	return append(opts, kgo.ProducerBatchCompression(codec)), nil
}

func compression(name string) (kgo.CompressionCodec, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return kgo.SnappyCompression(), nil
	case "none":
		return kgo.NoCompression(), nil
	case "lz4":
		return kgo.Lz4Compression(), nil
	case "zstd":
		return kgo.ZstdCompression(), nil
	default:
		return kgo.CompressionCodec{}, fmt.Errorf("unsupported compression %q", name)
	}
}

func splitBrokers(raw string) []string {
	var out []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Record converts msg into a kgo record. Headers are sorted by key so the
// record bytes are stable for a given message.
func (msg *Message) Record() *kgo.Record {
	keys := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	headers := make([]kgo.RecordHeader, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(msg.Headers[k])})
	}
	return &kgo.Record{
		Topic:   msg.Topic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Produce publishes msg and blocks until the broker acknowledges it.
func (p *Producer) Produce(ctx context.Context, msg *Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.client.ProduceSync(ctx, msg.Record()).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", msg.Headers["event_type"], err)
	}
	return nil
}

// Close flushes buffered records and shuts the client down. Repeated calls
// are no-ops.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil && p.logger != nil {
		p.logger.Warn("kafka producer closed with unflushed records", "error", err)
	}
	p.client.Close()
	return nil
}

// Healthy reports whether any seed broker answers.
func (p *Producer) Healthy(ctx context.Context) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.client.Ping(ctx) == nil
}

// NoopProducer acknowledges and discards every message. It stands in when
// no brokers are configured so the outbox still drains.
type NoopProducer struct {
	logger *slog.Logger
}

func NewNoopProducer(logger *slog.Logger) *NoopProducer {
	return &NoopProducer{logger: logger}
}

func (p *NoopProducer) Produce(_ context.Context, msg *Message) error {
	if p.logger != nil {
		p.logger.Debug("kafka disabled, dropping ledger event",
			"event_type", msg.Headers["event_type"],
			"key", string(msg.Key),
		)
	}
	return nil
}

func (p *NoopProducer) Close() error {
	return nil
}
