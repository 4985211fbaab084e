// Package worker relays committed ledger events from the outbox to Kafka.
//
// Records are keyed by aggregate ("claim/7") so one claim's lifecycle lands
// on one partition in commit order. The entry ID travels in the event_id
// header for consumer-side deduplication, since a crash between publish and
// MarkProcessed republishes the entry.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mutualpool/internal/platform/kafka/producer"
	"mutualpool/pkg/platform/outbox"
	"mutualpool/pkg/platform/outbox/metrics"
)

const (
	defaultTopic        = "mutualpool.ledger.events"
	defaultBatchSize    = 100
	defaultPollInterval = 100 * time.Millisecond
	pruneInterval       = time.Hour
	drainTimeout        = 10 * time.Second
)

// Publisher delivers a single message to the broker.
// *producer.Producer and *producer.NoopProducer satisfy it.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) { w.topic = topic }
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention enables hourly pruning of entries published more than d ago.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) { w.retention = d }
}

// WithClock replaces the wall clock used for processed_at and pruning.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        defaultTopic,
		batchSize:    defaultBatchSize,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the relay loop until Stop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()

	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-poll.C:
			w.poll(w.ctx)
		case <-prune.C:
			if _, err := w.Prune(w.ctx); err != nil {
				w.logError("failed to prune outbox", "error", err)
			}
		}
	}
}

// PollOnce relays one batch synchronously and returns how many entries were
// published and marked.
func (w *Worker) PollOnce(ctx context.Context) int {
	return w.poll(ctx)
}

func (w *Worker) poll(ctx context.Context) int {
	start := time.Now()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logError("failed to fetch outbox entries", "error", err)
		w.metrics.IncPublishFailures()
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))

	// An aggregate whose entry failed is skipped for the rest of the batch so
	// its later events cannot overtake it.
	blocked := make(map[string]bool)
	published := 0
	for _, entry := range entries {
		key := entry.PartitionKey()
		if blocked[key] {
			w.metrics.IncHeldBack()
			continue
		}
		if err := w.publish(ctx, entry); err != nil {
			blocked[key] = true
			w.metrics.IncPublishFailures()
			w.logError("failed to publish outbox entry",
				"id", entry.ID,
				"aggregate", key,
				"event_type", entry.EventType,
				"error", err,
			)
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			blocked[key] = true
			w.logError("published entry not marked, it will be republished", "id", entry.ID, "error", err)
			continue
		}
		published++
		w.metrics.IncPublished(entry.AggregateType)
	}

	w.refreshDepth(ctx)
	w.metrics.ObservePollDuration(time.Since(start).Seconds())
	return published
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()
	msg := &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.PartitionKey()),
		Value: entry.Payload,
		Headers: map[string]string{
			"event_id":       entry.ID.String(),
			"event_type":     entry.EventType,
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"created_at":     entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := w.publisher.Produce(ctx, msg); err != nil {
		return err
	}
	w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	return nil
}

func (w *Worker) refreshDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	count, err := w.store.CountPending(ctx)
	if err != nil {
		w.logError("failed to count pending outbox entries", "error", err)
		return
	}
	w.metrics.SetPendingDepth(count)
}

// Prune deletes entries published longer ago than the retention period.
// Without a retention it does nothing.
func (w *Worker) Prune(ctx context.Context) (int64, error) {
	if w.retention <= 0 {
		return 0, nil
	}
	removed, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 && w.logger != nil {
		w.logger.Info("pruned outbox", "removed", removed, "retention", w.retention)
	}
	return removed, nil
}

// drain keeps polling on shutdown until nothing is pending or a poll makes
// no progress.
func (w *Worker) drain() {
	if w.logger != nil {
		w.logger.Info("draining outbox worker")
	}
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		pending, err := w.store.CountPending(ctx)
		if err != nil || pending == 0 {
			return
		}
		if w.poll(ctx) == 0 {
			return
		}
	}
}

// Stop cancels the loop and waits for the drain to finish or ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) logError(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Error(msg, args...)
	}
}
