package models

import (
	"slices"
	"strings"
	"time"

	fundmodels "mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

// Status is a claim's lifecycle state. Transitions only move forward:
// Pending -> InReview -> Approved | Rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	// StatusRefunded is reserved for a fee-refund path; nothing transitions to it yet.
	StatusRefunded Status = "refunded"
)

// AttesterSharePercent of the requested amount goes to the attester; the owner
// receives the remainder.
const AttesterSharePercent = 80

// Vote is one panelist's ballot.
type Vote struct {
	Voter   id.AccountID `json:"voter"`
	Approve bool         `json:"approve"`
	At      time.Time    `json:"at"`
}

// Claim is a request for payout against an insured subject.
type Claim struct {
	ID           id.ClaimID
	Subject      id.SubjectID
	Owner        id.AccountID
	Attester     id.AccountID
	EvidenceRef  string
	Amount       uint64
	Fee          uint64
	Status       Status
	SubmittedAt  time.Time
	VotingEndsAt time.Time
	Panel        []id.AccountID
	Votes        []Vote
	Approvals    int
	Rejections   int
	PaidOut      bool
	Payouts      []fundmodels.Transfer
	DecidedAt    *time.Time
	UpdatedAt    time.Time
}

// NewClaim validates submission inputs and returns a Pending claim whose voting
// window starts at submission.
func NewClaim(subject id.SubjectID, owner, attester id.AccountID, evidenceRef string, amount, fee uint64, now time.Time, window time.Duration) (*Claim, error) {
	evidenceRef = strings.TrimSpace(evidenceRef)
	switch {
	case subject.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "subject is required")
	case attester.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "attester is required")
	case evidenceRef == "":
		return nil, dErrors.New(dErrors.CodeValidation, "evidence reference is required")
	case amount == 0:
		return nil, dErrors.New(dErrors.CodeValidation, "requested amount must be greater than zero")
	}
	return &Claim{
		Subject:      subject,
		Owner:        owner,
		Attester:     attester,
		EvidenceRef:  evidenceRef,
		Amount:       amount,
		Fee:          fee,
		Status:       StatusPending,
		SubmittedAt:  now,
		VotingEndsAt: now.Add(window),
		UpdatedAt:    now,
	}, nil
}

func (c *Claim) Clone() *Claim {
	cp := *c
	cp.Panel = slices.Clone(c.Panel)
	cp.Votes = slices.Clone(c.Votes)
	cp.Payouts = slices.Clone(c.Payouts)
	if c.DecidedAt != nil {
		t := *c.DecidedAt
		cp.DecidedAt = &t
	}
	return &cp
}

// AssignPanel freezes the panel and moves the claim into review.
func (c *Claim) AssignPanel(panel []id.AccountID, now time.Time) error {
	if c.Status != StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "panel can only be selected for a pending claim")
	}
	c.Panel = slices.Clone(panel)
	c.Status = StatusInReview
	c.UpdatedAt = now
	return nil
}

func (c *Claim) VotingOpen(now time.Time) bool {
	return now.Before(c.VotingEndsAt)
}

func (c *Claim) IsPanelist(account id.AccountID) bool {
	return slices.Contains(c.Panel, account)
}

func (c *Claim) HasVoted(account id.AccountID) bool {
	return slices.ContainsFunc(c.Votes, func(v Vote) bool { return v.Voter == account })
}

// AllVoted reports full turnout of the frozen panel.
func (c *Claim) AllVoted() bool {
	return len(c.Panel) > 0 && len(c.Votes) == len(c.Panel)
}

// CastVote records one ballot.
func (c *Claim) CastVote(voter id.AccountID, approve bool, now time.Time) error {
	switch {
	case c.Status != StatusInReview:
		return dErrors.New(dErrors.CodeInvalidState, "claim is not in review")
	case !c.VotingOpen(now):
		return dErrors.New(dErrors.CodeInvalidState, "voting window has closed")
	case !c.IsPanelist(voter):
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not on the panel")
	case c.HasVoted(voter):
		return dErrors.New(dErrors.CodeDuplicate, "panelist already voted")
	}
	c.Votes = append(c.Votes, Vote{Voter: voter, Approve: approve, At: now})
	if approve {
		c.Approvals++
	} else {
		c.Rejections++
	}
	c.UpdatedAt = now
	return nil
}

// CanFinalize reports whether evaluation may run: the window has elapsed or
// every panelist has voted.
func (c *Claim) CanFinalize(now time.Time) error {
	if c.Status != StatusInReview {
		return dErrors.New(dErrors.CodeInvalidState, "claim is not in review")
	}
	if c.VotingOpen(now) && !c.AllVoted() {
		return dErrors.New(dErrors.CodeInvalidState, "voting is still open")
	}
	return nil
}

// SuperMajority is the approval rule: strictly more than two thirds of cast votes.
func SuperMajority(approve, reject int) bool {
	return approve*3 > (approve+reject)*2
}

// Decide applies the approval rule to the cast votes and closes review.
func (c *Claim) Decide(now time.Time) Status {
	c.Status = StatusRejected
	if SuperMajority(c.Approvals, c.Rejections) {
		c.Status = StatusApproved
	}
	decided := now
	c.DecidedAt = &decided
	c.UpdatedAt = now
	return c.Status
}

// Approvers lists panelists who voted approve, in voting order.
func (c *Claim) Approvers() []id.AccountID {
	out := make([]id.AccountID, 0, c.Approvals)
	for _, v := range c.Votes {
		if v.Approve {
			out = append(out, v.Voter)
		}
	}
	return out
}

// PayoutPlan splits the requested amount between attester and owner and adds
// reward to every approving panelist.
func (c *Claim) PayoutPlan(reward uint64) []fundmodels.Transfer {
	attesterShare := c.Amount / 100 * AttesterSharePercent
	attesterShare += c.Amount % 100 * AttesterSharePercent / 100
	plan := []fundmodels.Transfer{
		{To: c.Attester, Amount: attesterShare},
		{To: c.Owner, Amount: c.Amount - attesterShare},
	}
	if reward > 0 {
		for _, a := range c.Approvers() {
			plan = append(plan, fundmodels.Transfer{To: a, Amount: reward})
		}
	}
	return plan
}

// MarkPaid records a completed payout.
func (c *Claim) MarkPaid(plan []fundmodels.Transfer, now time.Time) error {
	if c.Status != StatusApproved {
		return dErrors.New(dErrors.CodeInvalidState, "only approved claims are paid")
	}
	if c.PaidOut {
		return dErrors.New(dErrors.CodeInvalidState, "claim is already paid")
	}
	c.PaidOut = true
	c.Payouts = slices.Clone(plan)
	c.UpdatedAt = now
	return nil
}
