// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strconv"
	"strings"

	dErrors "mutualpool/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a SubjectID where an AccountID is expected.
type (
	// AccountID identifies any ledger participant: policyholders, attesters,
	// panelists, issuers and verifiers all share one account namespace.
	AccountID string
	// SubjectID identifies an insured asset held in the external asset registry.
	SubjectID string
	// ClaimID is the ledger-assigned sequence number of a claim.
	ClaimID uint64
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "account ID cannot be empty")
	}
	return AccountID(s), nil
}

func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "subject ID cannot be empty")
	}
	return SubjectID(s), nil
}

func ParseClaimID(s string) (ClaimID, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "invalid claim ID format")
	}
	return ClaimID(n), nil
}

// ParseAccountIDs parses a list of account IDs, failing on the first empty entry.
func ParseAccountIDs(raw []string) ([]AccountID, error) {
	out := make([]AccountID, 0, len(raw))
	for _, s := range raw {
		accountID, err := ParseAccountID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, accountID)
	}
	return out, nil
}

// String methods - for logging and debugging.

func (id AccountID) String() string { return string(id) }
func (id SubjectID) String() string { return string(id) }
func (id ClaimID) String() string   { return strconv.FormatUint(uint64(id), 10) }

// IsNil checks - used for service-layer validation.

func (id AccountID) IsNil() bool { return id == "" }
func (id SubjectID) IsNil() bool { return id == "" }
func (id ClaimID) IsNil() bool   { return id == 0 }
