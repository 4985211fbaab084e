package handler

import (
	"time"

	"mutualpool/internal/claims/models"
	credentialmodels "mutualpool/internal/credential/models"
	eligibilitymodels "mutualpool/internal/eligibility/models"
	fundmodels "mutualpool/internal/fund/models"
	"mutualpool/internal/ledger"
	rulesetmodels "mutualpool/internal/ruleset/models"
)

type CredentialResponse struct {
	Holder         string    `json:"holder"`
	LicenseRef     string    `json:"license_ref"`
	EvidenceRef    string    `json:"evidence_ref,omitempty"`
	Issuer         string    `json:"issuer"`
	Status         string    `json:"status"`
	StatusReason   string    `json:"status_reason,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Reputation     int       `json:"reputation"`
	RecordsIssued  uint64    `json:"records_issued"`
	ClaimsApproved uint64    `json:"claims_approved"`
}

func toCredentialResponse(c *credentialmodels.Credential) *CredentialResponse {
	return &CredentialResponse{
		Holder:         c.Holder.String(),
		LicenseRef:     c.LicenseRef,
		EvidenceRef:    c.EvidenceRef,
		Issuer:         c.Issuer.String(),
		Status:         string(c.Status),
		StatusReason:   c.StatusReason,
		IssuedAt:       c.IssuedAt,
		ExpiresAt:      c.ExpiresAt,
		Reputation:     c.Reputation,
		RecordsIssued:  c.RecordsIssued,
		ClaimsApproved: c.ClaimsApproved,
	}
}

type ParticipantResponse struct {
	Participant   string    `json:"participant"`
	DID           string    `json:"did"`
	Status        string    `json:"status"`
	Active        bool      `json:"active"`
	Reputation    int       `json:"reputation"`
	Stake         uint64    `json:"stake"`
	TotalVotes    uint64    `json:"total_votes"`
	MajorityVotes uint64    `json:"majority_votes"`
	LastActivity  time.Time `json:"last_activity"`
	RegisteredAt  time.Time `json:"registered_at"`
}

func toParticipantResponse(p *eligibilitymodels.Participant) *ParticipantResponse {
	return &ParticipantResponse{
		Participant:   p.Account.String(),
		DID:           p.DID,
		Status:        string(p.Status),
		Active:        p.Active,
		Reputation:    p.Reputation,
		Stake:         p.Stake,
		TotalVotes:    p.TotalVotes,
		MajorityVotes: p.MajorityVotes,
		LastActivity:  p.LastActivity,
		RegisteredAt:  p.RegisteredAt,
	}
}

type ClaimResponse struct {
	ID           string                `json:"id"`
	Subject      string                `json:"subject"`
	Owner        string                `json:"owner"`
	Attester     string                `json:"attester"`
	EvidenceRef  string                `json:"evidence_ref"`
	Amount       uint64                `json:"amount"`
	Fee          uint64                `json:"fee"`
	Status       string                `json:"status"`
	SubmittedAt  time.Time             `json:"submitted_at"`
	VotingEndsAt time.Time             `json:"voting_ends_at"`
	Panel        []string              `json:"panel"`
	Votes        []models.Vote         `json:"votes"`
	Approvals    int                   `json:"approvals"`
	Rejections   int                   `json:"rejections"`
	PaidOut      bool                  `json:"paid_out"`
	Payouts      []fundmodels.Transfer `json:"payouts,omitempty"`
	DecidedAt    *time.Time            `json:"decided_at,omitempty"`
}

func toClaimResponse(c *models.Claim) *ClaimResponse {
	panel := make([]string, len(c.Panel))
	for i, p := range c.Panel {
		panel[i] = p.String()
	}
	votes := c.Votes
	if votes == nil {
		votes = []models.Vote{}
	}
	return &ClaimResponse{
		ID:           c.ID.String(),
		Subject:      c.Subject.String(),
		Owner:        c.Owner.String(),
		Attester:     c.Attester.String(),
		EvidenceRef:  c.EvidenceRef,
		Amount:       c.Amount,
		Fee:          c.Fee,
		Status:       string(c.Status),
		SubmittedAt:  c.SubmittedAt,
		VotingEndsAt: c.VotingEndsAt,
		Panel:        panel,
		Votes:        votes,
		Approvals:    c.Approvals,
		Rejections:   c.Rejections,
		PaidOut:      c.PaidOut,
		Payouts:      c.Payouts,
		DecidedAt:    c.DecidedAt,
	}
}

type PoolResponse struct {
	Immediate uint64 `json:"immediate"`
	Stable    uint64 `json:"stable"`
	Risk      uint64 `json:"risk"`
	Total     uint64 `json:"total"`
}

func toPoolResponse(p *fundmodels.Pool) *PoolResponse {
	return &PoolResponse{
		Immediate: p.Immediate,
		Stable:    p.Stable,
		Risk:      p.Risk,
		Total:     p.Total(),
	}
}

type QuoteResponse struct {
	Subject     string `json:"subject"`
	BasePremium uint64 `json:"base_premium"`
	Multiplier  uint64 `json:"multiplier"`
	Premium     uint64 `json:"premium"`
}

func toQuoteResponse(q *ledger.Quote) *QuoteResponse {
	return &QuoteResponse{
		Subject:     q.Subject.String(),
		BasePremium: q.BasePremium,
		Multiplier:  q.Multiplier,
		Premium:     q.Premium,
	}
}

type GrantResponse struct {
	Account   string    `json:"account"`
	Role      string    `json:"role"`
	GrantedAt time.Time `json:"granted_at"`
}

type GrantsResponse struct {
	Grants []GrantResponse `json:"grants"`
}

func toGrantsResponse(grants []rulesetmodels.Grant) *GrantsResponse {
	out := make([]GrantResponse, len(grants))
	for i, g := range grants {
		out[i] = GrantResponse{Account: g.Account.String(), Role: string(g.Role), GrantedAt: g.GrantedAt}
	}
	return &GrantsResponse{Grants: out}
}

type StakersResponse struct {
	Stakers []string `json:"stakers"`
}
