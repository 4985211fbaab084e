package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	claimsservice "mutualpool/internal/claims/service"
	claimsstore "mutualpool/internal/claims/store"
	credentialservice "mutualpool/internal/credential/service"
	credentialstore "mutualpool/internal/credential/store"
	eligibilityservice "mutualpool/internal/eligibility/service"
	eligibilitystore "mutualpool/internal/eligibility/store"
	fundservice "mutualpool/internal/fund/service"
	fundstore "mutualpool/internal/fund/store"
	rulesetservice "mutualpool/internal/ruleset/service"
	rulesetstore "mutualpool/internal/ruleset/store"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/outbox"
	outboxmemory "mutualpool/pkg/platform/outbox/store/memory"
)

// defaultTxTimeout bounds a single ledger operation.
const defaultTxTimeout = 5 * time.Second

var errReadOnly = errors.New("outbox append in a read-only transaction")

// Stores groups the transaction-scoped stores of every bounded context.
type Stores struct {
	Ruleset     rulesetservice.Store
	Credentials credentialservice.Store
	Eligibility eligibilityservice.Store
	Fund        fundservice.Store
	Claims      claimsservice.Store
	Outbox      outbox.Appender
}

// Tx is the serialization boundary of the ledger. RunInTx commits everything
// fn wrote or nothing; View runs fn against a consistent snapshot and discards
// writes.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
	View(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

type readOnlyOutbox struct{}

func (readOnlyOutbox) Append(context.Context, *outbox.Entry) error {
	return errReadOnly
}

// MemoryTx serializes operations under one mutex. A transaction clones a
// store on its first write to it and the clones replace the live stores only
// when fn succeeds, so an operation pays for the stores it modifies.
type MemoryTx struct {
	mu          sync.Mutex
	ruleset     *rulesetstore.InMemoryStore
	credentials *credentialstore.InMemoryStore
	eligibility *eligibilitystore.InMemoryStore
	fund        *fundstore.InMemoryStore
	claims      *claimsstore.InMemoryStore
	outbox      *outboxmemory.Store
	timeout     time.Duration
}

// NewMemoryTx creates an empty in-memory ledger that appends committed events to out.
func NewMemoryTx(out *outboxmemory.Store) *MemoryTx {
	return &MemoryTx{
		ruleset:     rulesetstore.NewInMemory(),
		credentials: credentialstore.NewInMemory(),
		eligibility: eligibilitystore.NewInMemory(),
		fund:        fundstore.NewInMemory(),
		claims:      claimsstore.NewInMemory(),
		outbox:      out,
	}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer t.mu.Unlock()

	var (
		ruleset     = newCOW(t.ruleset, (*rulesetstore.InMemoryStore).Clone)
		credentials = newCOW(t.credentials, (*credentialstore.InMemoryStore).Clone)
		eligibility = newCOW(t.eligibility, (*eligibilitystore.InMemoryStore).Clone)
		fund        = newCOW(t.fund, (*fundstore.InMemoryStore).Clone)
		claims      = newCOW(t.claims, (*claimsstore.InMemoryStore).Clone)
		staged      = &outboxmemory.Staged{}
	)
	err = fn(ctx, Stores{
		Ruleset:     cowRuleset{ruleset},
		Credentials: cowCredentials{credentials},
		Eligibility: cowEligibility{eligibility},
		Fund:        cowFund{fund},
		Claims:      cowClaims{claims},
		Outbox:      staged,
	})
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	t.ruleset, t.credentials, t.eligibility = ruleset.result(), credentials.result(), eligibility.result()
	t.fund, t.claims = fund.result(), claims.result()
	if t.outbox == nil {
		return nil
	}
	return staged.Flush(ctx, t.outbox)
}

func (t *MemoryTx) View(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	ctx, cancel, err := t.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer t.mu.Unlock()

	return fn(ctx, Stores{
		Ruleset:     t.ruleset,
		Credentials: t.credentials,
		Eligibility: t.eligibility,
		Fund:        t.fund,
		Claims:      t.claims,
		Outbox:      readOnlyOutbox{},
	})
}

// begin applies the default timeout and takes the ledger lock. The caller
// releases both on success.
func (t *MemoryTx) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	cancel := context.CancelFunc(func() {})
	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	t.mu.Lock()
	if err := ctx.Err(); err != nil {
		t.mu.Unlock()
		cancel()
		return ctx, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return ctx, cancel, nil
}
