package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

// Status is the verification state of a participant.
type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusSuspended  Status = "suspended"
	StatusBanned     Status = "banned"
)

// Reputation deltas applied when a panelist's vote is fed back after evaluation.
const (
	AlignedVoteDelta    = 5
	MisalignedVoteDelta = -2
)

const (
	ReasonVotedWithMajority    = "voted_with_majority"
	ReasonVotedAgainstMajority = "voted_against_majority"
)

// Participant is the eligibility record of one reviewer.
type Participant struct {
	Account       id.AccountID
	DID           string
	ProofRef      string
	Status        Status
	Active        bool
	Reputation    int
	TotalVotes    uint64
	MajorityVotes uint64
	// LastActivity starts at registration and moves with every recorded vote.
	LastActivity time.Time
	Stake        uint64
	Claims       []id.ClaimID
	RegisteredAt time.Time
	UpdatedAt    time.Time
}

// NewParticipant validates registration inputs and returns an Unverified record.
func NewParticipant(account id.AccountID, did, proofRef string, now time.Time) (*Participant, error) {
	did = strings.TrimSpace(did)
	switch {
	case account.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "participant is required")
	case did == "":
		return nil, dErrors.New(dErrors.CodeValidation, "did is required")
	}
	return &Participant{
		Account:      account,
		DID:          did,
		ProofRef:     proofRef,
		Status:       StatusUnverified,
		Active:       true,
		Reputation:   id.InitialReputation,
		LastActivity: now,
		RegisteredAt: now,
		UpdatedAt:    now,
	}, nil
}

// Clone returns a copy that shares no slices with p.
func (p *Participant) Clone() *Participant {
	c := *p
	c.Claims = slices.Clone(p.Claims)
	return &c
}

// Policy holds the thresholds of the eligibility predicate.
type Policy struct {
	MinReputation    int
	MinStake         uint64
	InactivityWindow time.Duration
}

// IsEligible evaluates the composite predicate at now.
func (p *Participant) IsEligible(policy Policy, now time.Time) bool {
	return p.Status == StatusVerified &&
		p.Active &&
		p.Reputation >= policy.MinReputation &&
		p.Stake >= policy.MinStake &&
		now.Sub(p.LastActivity) < policy.InactivityWindow
}

// Verify flips an Unverified participant to Verified. Other states are left as they are.
func (p *Participant) Verify(now time.Time) bool {
	if p.Status != StatusUnverified {
		return false
	}
	p.Status = StatusVerified
	p.UpdatedAt = now
	return true
}

func (p *Participant) Suspend(now time.Time) error {
	if p.Status != StatusVerified {
		return transitionError("suspend", p.Status)
	}
	p.Status = StatusSuspended
	p.UpdatedAt = now
	return nil
}

func (p *Participant) Reinstate(now time.Time) error {
	if p.Status != StatusSuspended {
		return transitionError("reinstate", p.Status)
	}
	p.Status = StatusVerified
	p.UpdatedAt = now
	return nil
}

// Ban is terminal.
func (p *Participant) Ban(now time.Time) error {
	if p.Status == StatusBanned {
		return transitionError("ban", p.Status)
	}
	p.Status = StatusBanned
	p.Active = false
	p.UpdatedAt = now
	return nil
}

// HasVotedOn reports whether a vote on claim was already recorded.
func (p *Participant) HasVotedOn(claim id.ClaimID) bool {
	return slices.Contains(p.Claims, claim)
}

// RecordVote applies the post-evaluation reputation feedback for one claim.
func (p *Participant) RecordVote(claim id.ClaimID, withMajority bool, now time.Time) (ReputationChange, error) {
	if p.HasVotedOn(claim) {
		return ReputationChange{}, dErrors.New(dErrors.CodeDuplicate, "vote already recorded for this claim")
	}
	delta, reason := MisalignedVoteDelta, ReasonVotedAgainstMajority
	if withMajority {
		delta, reason = AlignedVoteDelta, ReasonVotedWithMajority
		p.MajorityVotes++
	}
	p.TotalVotes++
	p.Claims = append(p.Claims, claim)
	p.LastActivity = now
	p.Reputation = id.ClampReputation(p.Reputation, delta)
	p.UpdatedAt = now
	return ReputationChange{
		Participant: p.Account,
		Claim:       claim,
		Delta:       delta,
		Score:       p.Reputation,
		Reason:      reason,
		At:          now,
	}, nil
}

func transitionError(op string, from Status) error {
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot %s a %s participant", op, from))
}

// Checkpoint is one append-only sybil check.
type Checkpoint struct {
	Participant  id.AccountID `json:"participant"`
	IdentityHash string       `json:"identity_hash"`
	Verifier     id.AccountID `json:"verifier"`
	Passed       bool         `json:"passed"`
	At           time.Time    `json:"at"`
}

// ReputationChange is one entry in a participant's reputation history.
// Delta is the requested change; Score is the clamped result.
type ReputationChange struct {
	Participant id.AccountID `json:"participant"`
	Claim       id.ClaimID   `json:"claim_id"`
	Delta       int          `json:"delta"`
	Score       int          `json:"score"`
	Reason      string       `json:"reason"`
	At          time.Time    `json:"at"`
}

// Eligibility is one entry of a batch eligibility snapshot.
type Eligibility struct {
	Participant id.AccountID `json:"participant"`
	Eligible    bool         `json:"eligible"`
}
