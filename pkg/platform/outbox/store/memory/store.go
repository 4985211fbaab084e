package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mutualpool/pkg/platform/outbox"
)

// Store keeps outbox entries in process memory. It backs the in-memory
// ledger mode and the worker tests.
type Store struct {
	mu      sync.Mutex
	entries []*outbox.Entry
}

// New creates an empty in-memory outbox.
func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry *outbox.Entry) error {
	if entry == nil {
		return fmt.Errorf("outbox entry is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *Store) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*outbox.Entry, 0, limit)
	for _, e := range s.entries {
		if e.IsPending() {
			copied := *e
			pending = append(pending, &copied)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id && e.IsPending() {
			at := processedAt
			e.ProcessedAt = &at
			return nil
		}
	}
	return fmt.Errorf("outbox entry not found or already processed: %s", id)
}

func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if !e.IsPending() && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// All returns a snapshot of every entry, processed or not.
func (s *Store) All() []*outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*outbox.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		copied := *e
		out = append(out, &copied)
	}
	return out
}

// Staged buffers appends made inside an uncommitted transaction.
// Flush forwards them to the target once the transaction commits.
type Staged struct {
	entries []*outbox.Entry
}

func (s *Staged) Append(_ context.Context, entry *outbox.Entry) error {
	if entry == nil {
		return fmt.Errorf("outbox entry is required")
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Flush appends every staged entry to target in order.
func (s *Staged) Flush(ctx context.Context, target outbox.Appender) error {
	for _, e := range s.entries {
		if err := target.Append(ctx, e); err != nil {
			return err
		}
	}
	s.entries = nil
	return nil
}

// Len reports how many entries are staged.
func (s *Staged) Len() int {
	return len(s.entries)
}
