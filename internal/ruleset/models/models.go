package models

import (
	"time"

	id "mutualpool/pkg/domain"
)

// Role is a capability granted by the administrator.
type Role string

const (
	// RoleIssuer may issue professional credentials.
	RoleIssuer Role = "issuer"
	// RoleVerifier may record eligibility checks and discipline participants.
	RoleVerifier Role = "verifier"
	// RoleRegistrant may register participants while registration is closed.
	RoleRegistrant Role = "registrant"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleIssuer, RoleVerifier, RoleRegistrant:
		return true
	}
	return false
}

// ParseRole validates a role name from an untrusted source.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}

// Settings is the ledger-wide mutable configuration.
type Settings struct {
	OpenRegistration bool
	// LastTimestamp is the latest ledger time any committed operation observed.
	// Operation time never moves below it.
	LastTimestamp time.Time
}

// Advance returns max(now, LastTimestamp) and records it.
func (s *Settings) Advance(now time.Time) time.Time {
	if now.Before(s.LastTimestamp) {
		return s.LastTimestamp
	}
	s.LastTimestamp = now
	return now
}

// Grant is one role assignment.
type Grant struct {
	Account   id.AccountID
	Role      Role
	GrantedAt time.Time
}
