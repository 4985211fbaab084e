package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutualpool/internal/platform/kafka/producer"
	"mutualpool/pkg/platform/outbox"
	"mutualpool/pkg/platform/outbox/metrics"
	"mutualpool/pkg/platform/outbox/store/memory"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	failFor  map[string]bool
}

func (p *recordingPublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.Headers["event_type"]] {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) sent() []*producer.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*producer.Message(nil), p.messages...)
}

func (p *recordingPublisher) eventTypes() []string {
	var out []string
	for _, m := range p.sent() {
		out = append(out, m.Headers["event_type"])
	}
	return out
}

func appendEntry(t *testing.T, store *memory.Store, aggregate, id, eventType string, at time.Time) *outbox.Entry {
	t.Helper()
	entry := outbox.NewEntry(aggregate, id, eventType, []byte(`{}`), at)
	require.NoError(t, store.Append(context.Background(), entry))
	return entry
}

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestPollOncePublishesInCreationOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	second := appendEntry(t, store, "claim", "1", "claim.vote_recorded", base.Add(time.Second))
	first := appendEntry(t, store, "claim", "1", "claim.submitted", base)

	pub := &recordingPublisher{}
	w := New(store, pub, WithTopic("ledger-test"))

	assert.Equal(t, 2, w.PollOnce(ctx))

	sent := pub.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "claim/1", string(sent[0].Key))
	assert.Equal(t, first.ID.String(), sent[0].Headers["event_id"])
	assert.Equal(t, second.ID.String(), sent[1].Headers["event_id"])
	assert.Equal(t, "ledger-test", sent[0].Topic)
	assert.Equal(t, "2026-01-01T00:00:00Z", sent[0].Headers["created_at"])

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestFailedEntryHoldsBackItsAggregate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	appendEntry(t, store, "claim", "1", "claim.submitted", base)
	appendEntry(t, store, "claim", "1", "claim.panel_selected", base.Add(time.Second))
	appendEntry(t, store, "ledger", "alice", "ledger.staked", base.Add(2*time.Second))
	appendEntry(t, store, "claim", "1", "claim.vote_recorded", base.Add(3*time.Second))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	pub := &recordingPublisher{failFor: map[string]bool{"claim.panel_selected": true}}
	w := New(store, pub, WithMetrics(m))

	assert.Equal(t, 2, w.PollOnce(ctx))
	assert.Equal(t, []string{"claim.submitted", "ledger.staked"}, pub.eventTypes())

	assert.InDelta(t, 1, testutil.ToFloat64(m.PublishFailures), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.HeldBack), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PublishedTotal.WithLabelValues("claim")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.PublishedTotal.WithLabelValues("ledger")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.PendingDepth), 0)

	// broker recovers: the held entries go out in their original order
	pub.failFor = nil
	assert.Equal(t, 2, w.PollOnce(ctx))
	assert.Equal(t, []string{"claim.submitted", "ledger.staked", "claim.panel_selected", "claim.vote_recorded"}, pub.eventTypes())
	assert.InDelta(t, 0, testutil.ToFloat64(m.PendingDepth), 0)
}

func TestPruneHonoursRetention(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	appendEntry(t, store, "claim", "1", "claim.submitted", base)

	now := base
	w := New(store, &recordingPublisher{}, WithClock(func() time.Time { return now }))
	require.Equal(t, 1, w.PollOnce(ctx))

	removed, err := w.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed, "no retention configured")

	w = New(store, &recordingPublisher{}, WithRetention(24*time.Hour), WithClock(func() time.Time { return now }))
	now = base.Add(23 * time.Hour)
	removed, err = w.Prune(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	now = base.Add(25 * time.Hour)
	removed, err = w.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Empty(t, store.All())
}

func TestStartAndStopDrainsPendingEntries(t *testing.T) {
	store := memory.New()
	appendEntry(t, store, "claim", "1", "claim.submitted", time.Now())

	pub := &recordingPublisher{}
	w := New(store, pub, WithPollInterval(10*time.Millisecond))
	w.Start()

	assert.Eventually(t, func() bool {
		return len(pub.sent()) == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}
