package ports

//go:generate mockgen -source=registry.go -destination=../mocks/registry_mock.go -package=mocks RegistryPort

import (
	"context"

	id "mutualpool/pkg/domain"
)

// RegistryPort is the read side of the external asset registry.
// The engine never writes to it; ownership and history are maintained by the
// registry operator.
type RegistryPort interface {
	// OwnerOf returns the recorded owner of subject.
	// Returns sentinel.ErrNotFound for an unknown subject.
	OwnerOf(ctx context.Context, subject id.SubjectID) (id.AccountID, error)

	// HistoryLength returns the number of historical records kept for subject.
	// Unknown subjects have no history.
	HistoryLength(ctx context.Context, subject id.SubjectID) (uint64, error)

	// IsAttesterAuthorized reports whether attester may attest claims for subject.
	IsAttesterAuthorized(ctx context.Context, subject id.SubjectID, attester id.AccountID) (bool, error)
}
