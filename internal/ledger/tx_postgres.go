package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	claimsstore "mutualpool/internal/claims/store"
	credentialstore "mutualpool/internal/credential/store"
	eligibilitystore "mutualpool/internal/eligibility/store"
	fundstore "mutualpool/internal/fund/store"
	rulesetstore "mutualpool/internal/ruleset/store"
	dErrors "mutualpool/pkg/domain-errors"
	outboxpostgres "mutualpool/pkg/platform/outbox/store/postgres"
)

// ledgerLockKey is the advisory lock every write transaction takes, which
// gives all ledger operations one total order across server replicas.
const ledgerLockKey int64 = 0x6d757475616c

// PostgresTx runs each operation in a database transaction holding the ledger
// advisory lock. Events are appended to the outbox table in the same transaction.
type PostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTx(db *sql.DB) *PostgresTx {
	return &PostgresTx{db: db}
}

func (t *PostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	return t.run(ctx, nil, true, fn)
}

func (t *PostgresTx) View(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	return t.run(ctx, &sql.TxOptions{ReadOnly: true}, false, fn)
}

func (t *PostgresTx) run(ctx context.Context, opts *sql.TxOptions, lock bool, fn func(ctx context.Context, stores Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, opts)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if lock {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire ledger lock")
		}
	}

	stores := Stores{
		Ruleset:     rulesetstore.NewPostgresTx(tx),
		Credentials: credentialstore.NewPostgresTx(tx),
		Eligibility: eligibilitystore.NewPostgresTx(tx),
		Fund:        fundstore.NewPostgresTx(tx),
		Claims:      claimsstore.NewPostgresTx(tx),
		Outbox:      readOnlyOutbox{},
	}
	if lock {
		stores.Outbox = outboxpostgres.NewTx(tx)
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(fmt.Errorf("commit: %w", err), dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
