package models

import (
	"fmt"
	"strings"
	"time"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

// Status is the lifecycle state of a professional credential.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
	StatusExpired   Status = "expired"
)

// Reputation nudges applied by usage callbacks.
const (
	RecordIssuedBonus  = 1
	ClaimApprovedBonus = 2
)

// Credential is a professional attestation bound to one holder and one license.
// Records are never deleted; revocation is terminal but the row persists for audit.
type Credential struct {
	Holder         id.AccountID
	LicenseRef     string
	EvidenceRef    string
	Issuer         id.AccountID
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Status         Status
	StatusReason   string
	Reputation     int
	RecordsIssued  uint64
	ClaimsApproved uint64
	UpdatedAt      time.Time
}

// NewCredential validates issuance inputs and returns an Active credential.
func NewCredential(holder, issuer id.AccountID, licenseRef, evidenceRef string, expiresAt, now time.Time) (*Credential, error) {
	licenseRef = strings.TrimSpace(licenseRef)
	switch {
	case holder.IsNil():
		return nil, dErrors.New(dErrors.CodeValidation, "holder is required")
	case licenseRef == "":
		return nil, dErrors.New(dErrors.CodeValidation, "license reference is required")
	case !expiresAt.After(now):
		return nil, dErrors.New(dErrors.CodeValidation, "expiry must be in the future")
	}
	return &Credential{
		Holder:      holder,
		LicenseRef:  licenseRef,
		EvidenceRef: evidenceRef,
		Issuer:      issuer,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
		Status:      StatusActive,
		Reputation:  id.InitialReputation,
		UpdatedAt:   now,
	}, nil
}

// IsValid reports Active status with an expiry strictly after now. Expiry is
// checked independently of the status field.
func (c *Credential) IsValid(now time.Time) bool {
	return c.Status == StatusActive && c.ExpiresAt.After(now)
}

func (c *Credential) Suspend(reason string, now time.Time) error {
	if c.Status != StatusActive {
		return transitionError("suspend", c.Status)
	}
	c.setStatus(StatusSuspended, reason, now)
	return nil
}

func (c *Credential) Reactivate(reason string, now time.Time) error {
	if c.Status != StatusSuspended {
		return transitionError("reactivate", c.Status)
	}
	c.setStatus(StatusActive, reason, now)
	return nil
}

// Revoke is irreversible.
func (c *Credential) Revoke(reason string, now time.Time) error {
	if c.Status == StatusRevoked {
		return transitionError("revoke", c.Status)
	}
	c.setStatus(StatusRevoked, reason, now)
	return nil
}

// Renew extends the expiry. An Expired credential returns to Active;
// a Suspended one keeps its suspension.
func (c *Credential) Renew(newExpiry, now time.Time) error {
	if c.Status == StatusRevoked {
		return transitionError("renew", c.Status)
	}
	if !newExpiry.After(now) || !newExpiry.After(c.ExpiresAt) {
		return dErrors.New(dErrors.CodeValidation, "new expiry must be after both now and the current expiry")
	}
	c.ExpiresAt = newExpiry
	if c.Status == StatusExpired {
		c.setStatus(StatusActive, "renewed", now)
		return nil
	}
	c.UpdatedAt = now
	return nil
}

// Expire records that the expiry has passed.
func (c *Credential) Expire(now time.Time) error {
	if c.Status != StatusActive && c.Status != StatusSuspended {
		return transitionError("expire", c.Status)
	}
	if c.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeInvalidState, "credential has not reached its expiry")
	}
	c.setStatus(StatusExpired, "expired", now)
	return nil
}

func (c *Credential) RecordIssued(now time.Time) {
	c.RecordsIssued++
	c.Reputation = id.ClampReputation(c.Reputation, RecordIssuedBonus)
	c.UpdatedAt = now
}

func (c *Credential) ApproveClaim(now time.Time) {
	c.ClaimsApproved++
	c.Reputation = id.ClampReputation(c.Reputation, ClaimApprovedBonus)
	c.UpdatedAt = now
}

func (c *Credential) setStatus(s Status, reason string, now time.Time) {
	c.Status = s
	c.StatusReason = reason
	c.UpdatedAt = now
}

func transitionError(op string, from Status) error {
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot %s a %s credential", op, from))
}

// Validity is one entry of a batch validity snapshot.
type Validity struct {
	Holder id.AccountID `json:"holder"`
	Valid  bool         `json:"valid"`
}
