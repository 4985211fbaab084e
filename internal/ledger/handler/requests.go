package handler

import (
	"strings"
	"time"

	s "mutualpool/pkg/string"
	"mutualpool/pkg/validation"
)

// HTTP request DTOs. Struct tags are checked by the shared validator before
// the request reaches the engine.

type GrantRoleRequest struct {
	Account string `json:"account" validate:"required,ident"`
}

func (r *GrantRoleRequest) Normalize() { s.TrimStrings(&r.Account) }
func (r *GrantRoleRequest) Validate() error {
	return validation.Validate(r)
}

type RegistrationRequest struct {
	Open *bool `json:"open" validate:"required"`
}

func (r *RegistrationRequest) Validate() error {
	return validation.Validate(r)
}

type IssueCredentialRequest struct {
	Holder      string    `json:"holder" validate:"required,ident"`
	LicenseRef  string    `json:"license_ref" validate:"required,notblank,max=256"`
	EvidenceRef string    `json:"evidence_ref" validate:"max=1024"`
	ExpiresAt   time.Time `json:"expires_at" validate:"required"`
}

func (r *IssueCredentialRequest) Normalize() {
	s.TrimStrings(&r.Holder, &r.LicenseRef, &r.EvidenceRef)
}

func (r *IssueCredentialRequest) Validate() error {
	return validation.Validate(r)
}

// ReasonRequest carries the free-text reason of a status transition.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=512"`
}

func (r *ReasonRequest) Normalize() { s.TrimStrings(&r.Reason) }
func (r *ReasonRequest) Validate() error {
	return validation.Validate(r)
}

type RenewCredentialRequest struct {
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

func (r *RenewCredentialRequest) Validate() error {
	return validation.Validate(r)
}

type HoldersRequest struct {
	Holders []string `json:"holders" validate:"required,min=1,max=500,dive,notblank"`
}

func (r *HoldersRequest) Normalize() { s.TrimSlice(r.Holders) }
func (r *HoldersRequest) Validate() error {
	return validation.Validate(r)
}

type RegisterParticipantRequest struct {
	Participant string `json:"participant" validate:"required,ident"`
	DID         string `json:"did" validate:"required,notblank,max=512"`
	ProofRef    string `json:"proof_ref" validate:"max=1024"`
}

func (r *RegisterParticipantRequest) Normalize() {
	s.TrimStrings(&r.Participant, &r.DID, &r.ProofRef)
}

func (r *RegisterParticipantRequest) Validate() error {
	return validation.Validate(r)
}

type CheckRequest struct {
	IdentityHash string `json:"identity_hash" validate:"required,notblank,max=256"`
	Passed       *bool  `json:"passed" validate:"required"`
}

func (r *CheckRequest) Normalize() {
	r.IdentityHash = strings.ToLower(strings.TrimSpace(r.IdentityHash))
}

func (r *CheckRequest) Validate() error {
	return validation.Validate(r)
}

type ParticipantsRequest struct {
	Participants []string `json:"participants" validate:"required,min=1,max=500,dive,notblank"`
}

func (r *ParticipantsRequest) Normalize() { s.TrimSlice(r.Participants) }
func (r *ParticipantsRequest) Validate() error {
	return validation.Validate(r)
}

// AmountRequest is shared by every operation that moves a single amount.
type AmountRequest struct {
	Amount uint64 `json:"amount" validate:"gt=0"`
}

func (r *AmountRequest) Validate() error {
	return validation.Validate(r)
}

type SubmitClaimRequest struct {
	Subject     string `json:"subject" validate:"required,ident"`
	Attester    string `json:"attester" validate:"required,ident"`
	EvidenceRef string `json:"evidence_ref" validate:"required,notblank,max=1024"`
	Amount      uint64 `json:"amount" validate:"gt=0"`
}

func (r *SubmitClaimRequest) Normalize() {
	s.TrimStrings(&r.Subject, &r.Attester, &r.EvidenceRef)
}

func (r *SubmitClaimRequest) Validate() error {
	return validation.Validate(r)
}

type VoteRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

func (r *VoteRequest) Validate() error {
	return validation.Validate(r)
}
