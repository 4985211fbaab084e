// Package outbox implements the transactional outbox that carries ledger
// events to external indexers. Entries are written in the same transaction
// as the state change and relayed to the broker by the worker.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one committed ledger event awaiting publication.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // credential, participant, claim, ledger, ruleset
	AggregateID   string // holder, participant, claim number or account
	EventType     string
	Payload       []byte // JSON events.Event
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// PartitionKey groups every event of one aggregate, e.g. "claim/7", so a
// consumer sees a claim's lifecycle in commit order.
func (e *Entry) PartitionKey() string {
	return e.AggregateType + "/" + e.AggregateID
}

// NewEntry stamps a fresh entry. createdAt is ledger time, not wall time.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     createdAt,
	}
}
