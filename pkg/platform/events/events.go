// Package events defines the ledger's externally visible side effects.
//
// Services emit events from inside a ledger transaction. The emitter used in
// production appends them to the transactional outbox, so an event becomes
// visible to indexers if and only if the operation that produced it commits.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/outbox"
)

// Type names an event for consumers. Values are stable wire identifiers.
type Type string

const (
	CredentialIssued      Type = "credential.issued"
	CredentialSuspended   Type = "credential.suspended"
	CredentialReactivated Type = "credential.reactivated"
	CredentialRevoked     Type = "credential.revoked"
	CredentialRenewed     Type = "credential.renewed"
	CredentialExpired     Type = "credential.expired"
	CredentialUsage       Type = "credential.usage_recorded"

	ParticipantRegistered        Type = "participant.registered"
	ParticipantCheckRecorded     Type = "participant.check_recorded"
	ParticipantVerified          Type = "participant.verified"
	ParticipantSuspended         Type = "participant.suspended"
	ParticipantBanned            Type = "participant.banned"
	ParticipantReinstated        Type = "participant.reinstated"
	ParticipantReputationChanged Type = "participant.reputation_changed"

	ClaimSubmitted       Type = "claim.submitted"
	ClaimPanelSelected   Type = "claim.panel_selected"
	ClaimVoteRecorded    Type = "claim.vote_recorded"
	ClaimStatusChanged   Type = "claim.status_changed"
	ClaimPayoutExecuted  Type = "claim.payout_executed"
	ClaimPayoutDeferred  Type = "claim.payout_deferred"
	LedgerStaked         Type = "ledger.staked"
	LedgerUnstaked       Type = "ledger.unstaked"
	LedgerPremiumPaid    Type = "ledger.premium_paid"
	LedgerAccountFunded  Type = "ledger.account_funded"
	LedgerWithdrawn      Type = "ledger.withdrawn"
	RulesetRoleGranted   Type = "ruleset.role_granted"
	RulesetRoleRevoked   Type = "ruleset.role_revoked"
	RulesetRegistration  Type = "ruleset.registration_changed"
)

// Aggregate types used as outbox partition hints.
const (
	AggregateCredential  = "credential"
	AggregateParticipant = "participant"
	AggregateClaim       = "claim"
	AggregateLedger      = "ledger"
	AggregateRuleset     = "ruleset"
)

// Event is emitted from domain logic to capture a committed state change.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Type          Type           `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	Actor         id.AccountID   `json:"actor,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

// Emitter receives events produced inside a ledger operation.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// OutboxEmitter serializes events into outbox entries bound to the current transaction.
type OutboxEmitter struct {
	out outbox.Appender
}

// NewOutboxEmitter wraps a transaction-scoped outbox appender.
func NewOutboxEmitter(out outbox.Appender) *OutboxEmitter {
	return &OutboxEmitter{out: out}
}

func (e *OutboxEmitter) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}
	entry := outbox.NewEntry(event.AggregateType, event.AggregateID, string(event.Type), payload, event.Timestamp)
	return e.out.Append(ctx, entry)
}

// Recorder keeps events in memory. Used by unit tests that exercise a single service.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events matching t, in emission order.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
