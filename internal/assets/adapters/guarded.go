package adapters

import (
	"context"
	"errors"

	"mutualpool/internal/assets/ports"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/circuit"
	"mutualpool/pkg/platform/sentinel"
)

// GuardedRegistry fails fast while the backing registry is unhealthy so a
// Redis outage surfaces as a timeout instead of stalling every ledger operation
// behind the advisory lock.
type GuardedRegistry struct {
	next    ports.RegistryPort
	breaker *circuit.Breaker
}

func NewGuardedRegistry(next ports.RegistryPort, breaker *circuit.Breaker) *GuardedRegistry {
	return &GuardedRegistry{next: next, breaker: breaker}
}

func (g *GuardedRegistry) OwnerOf(ctx context.Context, subject id.SubjectID) (id.AccountID, error) {
	return guard(g, func() (id.AccountID, error) { return g.next.OwnerOf(ctx, subject) })
}

func (g *GuardedRegistry) HistoryLength(ctx context.Context, subject id.SubjectID) (uint64, error) {
	return guard(g, func() (uint64, error) { return g.next.HistoryLength(ctx, subject) })
}

func (g *GuardedRegistry) IsAttesterAuthorized(ctx context.Context, subject id.SubjectID, attester id.AccountID) (bool, error) {
	return guard(g, func() (bool, error) { return g.next.IsAttesterAuthorized(ctx, subject, attester) })
}

func guard[T any](g *GuardedRegistry, call func() (T, error)) (T, error) {
	var zero T
	if !g.breaker.Allow() {
		return zero, dErrors.New(dErrors.CodeTimeout, "asset registry unavailable")
	}
	out, err := call()
	// Not-found is an answer, not an outage.
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		g.breaker.RecordFailure()
		return zero, err
	}
	g.breaker.RecordSuccess()
	return out, err
}
