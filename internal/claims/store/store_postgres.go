package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"mutualpool/internal/claims/models"
	fundmodels "mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists claims. Panel, votes and payouts are stored as JSONB
// documents on the claim row.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a store bound to a ledger transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const claimColumns = `id, subject_id, owner_id, attester_id, evidence_ref, amount, fee, status,
	submitted_at, voting_ends_at, panel, votes, approvals, rejections, paid_out, payouts, decided_at, updated_at`

// NextID draws from claim_id_seq. Ids consumed by a rolled-back operation are
// not reused, so gaps are possible.
func (s *PostgresStore) NextID(ctx context.Context) (id.ClaimID, error) {
	var next int64
	if err := s.execer().QueryRowContext(ctx, `SELECT nextval('claim_id_seq')`).Scan(&next); err != nil {
		return 0, fmt.Errorf("next claim id: %w", err)
	}
	return id.ClaimID(next), nil
}

type documents struct {
	panel, votes, payouts []byte
}

func marshalDocuments(c *models.Claim) (documents, error) {
	var (
		d   documents
		err error
	)
	if d.panel, err = json.Marshal(orEmpty(c.Panel)); err != nil {
		return d, fmt.Errorf("marshal panel: %w", err)
	}
	if d.votes, err = json.Marshal(orEmpty(c.Votes)); err != nil {
		return d, fmt.Errorf("marshal votes: %w", err)
	}
	if d.payouts, err = json.Marshal(orEmpty(c.Payouts)); err != nil {
		return d, fmt.Errorf("marshal payouts: %w", err)
	}
	return d, nil
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func (s *PostgresStore) Create(ctx context.Context, c *models.Claim) error {
	d, err := marshalDocuments(c)
	if err != nil {
		return err
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, int64(c.ID), string(c.Subject), string(c.Owner), string(c.Attester), c.EvidenceRef, c.Amount, c.Fee,
		string(c.Status), c.SubmittedAt, c.VotingEndsAt, d.panel, d.votes, c.Approvals, c.Rejections,
		c.PaidOut, d.payouts, c.DecidedAt, c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	row := s.execer().QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, int64(claimID))
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Claim) error {
	d, err := marshalDocuments(c)
	if err != nil {
		return err
	}
	res, err := s.execer().ExecContext(ctx, `
		UPDATE claims
		SET status = $2, panel = $3, votes = $4, approvals = $5, rejections = $6,
		    paid_out = $7, payouts = $8, decided_at = $9, updated_at = $10
		WHERE id = $1
	`, int64(c.ID), string(c.Status), d.panel, d.votes, c.Approvals, c.Rejections,
		c.PaidOut, d.payouts, c.DecidedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanClaim(row *sql.Row) (*models.Claim, error) {
	var (
		c                               models.Claim
		claimID                         int64
		subject, owner, attester, state string
		panel, votes, payouts           []byte
		decidedAt                       sql.NullTime
	)
	if err := row.Scan(&claimID, &subject, &owner, &attester, &c.EvidenceRef, &c.Amount, &c.Fee, &state,
		&c.SubmittedAt, &c.VotingEndsAt, &panel, &votes, &c.Approvals, &c.Rejections,
		&c.PaidOut, &payouts, &decidedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = id.ClaimID(claimID)
	c.Subject, c.Owner, c.Attester = id.SubjectID(subject), id.AccountID(owner), id.AccountID(attester)
	c.Status = models.Status(state)
	if decidedAt.Valid {
		t := decidedAt.Time
		c.DecidedAt = &t
	}
	if err := json.Unmarshal(panel, &c.Panel); err != nil {
		return nil, fmt.Errorf("unmarshal panel: %w", err)
	}
	if err := json.Unmarshal(votes, &c.Votes); err != nil {
		return nil, fmt.Errorf("unmarshal votes: %w", err)
	}
	var plan []fundmodels.Transfer
	if err := json.Unmarshal(payouts, &plan); err != nil {
		return nil, fmt.Errorf("unmarshal payouts: %w", err)
	}
	if len(plan) > 0 {
		c.Payouts = plan
	}
	if len(c.Panel) == 0 {
		c.Panel = nil
	}
	if len(c.Votes) == 0 {
		c.Votes = nil
	}
	return &c, nil
}
