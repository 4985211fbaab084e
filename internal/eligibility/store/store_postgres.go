package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"mutualpool/internal/eligibility/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists eligibility records in PostgreSQL.
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
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const participantColumns = `account_id, did, proof_ref, status, active, reputation, total_votes,
	majority_votes, last_activity, stake, claims, registered_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Participant) error {
	claims, err := json.Marshal(claimsOrEmpty(p.Claims))
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO participants (`+participantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, string(p.Account), p.DID, p.ProofRef, string(p.Status), p.Active, p.Reputation, p.TotalVotes,
		p.MajorityVotes, p.LastActivity, p.Stake, claims, p.RegisteredAt, p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, account id.AccountID) (*models.Participant, error) {
	row := s.execer().QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE account_id = $1`, string(account))
	return scanOne(row)
}

func (s *PostgresStore) FindByDID(ctx context.Context, did string) (*models.Participant, error) {
	row := s.execer().QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE did = $1`, did)
	return scanOne(row)
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Participant) error {
	claims, err := json.Marshal(claimsOrEmpty(p.Claims))
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	res, err := s.execer().ExecContext(ctx, `
		UPDATE participants
		SET proof_ref = $2, status = $3, active = $4, reputation = $5, total_votes = $6,
		    majority_votes = $7, last_activity = $8, stake = $9, claims = $10, updated_at = $11
		WHERE account_id = $1
	`, string(p.Account), p.ProofRef, string(p.Status), p.Active, p.Reputation, p.TotalVotes,
		p.MajorityVotes, p.LastActivity, p.Stake, claims, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByAccounts(ctx context.Context, accounts []id.AccountID) (map[id.AccountID]*models.Participant, error) {
	out := make(map[id.AccountID]*models.Participant, len(accounts))
	if len(accounts) == 0 {
		return out, nil
	}
	keys := make([]string, len(accounts))
	for i, a := range accounts {
		keys[i] = string(a)
	}
	rows, err := s.execer().QueryContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE account_id = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out[p.Account] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) HashOwner(ctx context.Context, hash string) (id.AccountID, error) {
	var owner string
	err := s.execer().QueryRowContext(ctx, `SELECT account_id FROM identity_hashes WHERE hash = $1`, hash).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("find identity hash: %w", err)
	}
	return id.AccountID(owner), nil
}

func (s *PostgresStore) MarkHashUsed(ctx context.Context, hash string, account id.AccountID) error {
	res, err := s.execer().ExecContext(ctx, `
		INSERT INTO identity_hashes (hash, account_id)
		VALUES ($1, $2)
		ON CONFLICT (hash) DO UPDATE SET account_id = EXCLUDED.account_id
		WHERE identity_hashes.account_id = EXCLUDED.account_id
	`, hash, string(account))
	if err != nil {
		return fmt.Errorf("mark identity hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark identity hash rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *PostgresStore) AppendCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO sybil_checkpoints (account_id, identity_hash, verifier, passed, checked_at)
		VALUES ($1, $2, $3, $4, $5)
	`, string(cp.Participant), cp.IdentityHash, string(cp.Verifier), cp.Passed, cp.At)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCheckpoints(ctx context.Context, account id.AccountID) ([]models.Checkpoint, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT account_id, identity_hash, verifier, passed, checked_at
		FROM sybil_checkpoints
		WHERE account_id = $1
		ORDER BY seq
	`, string(account))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()
	var out []models.Checkpoint
	for rows.Next() {
		var (
			cp                    models.Checkpoint
			participant, verifier string
		)
		if err := rows.Scan(&participant, &cp.IdentityHash, &verifier, &cp.Passed, &cp.At); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp.Participant, cp.Verifier = id.AccountID(participant), id.AccountID(verifier)
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AppendReputationChange(ctx context.Context, c models.ReputationChange) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO reputation_history (account_id, claim_id, delta, score, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, string(c.Participant), int64(c.Claim), c.Delta, c.Score, c.Reason, c.At)
	if err != nil {
		return fmt.Errorf("insert reputation change: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListReputationChanges(ctx context.Context, account id.AccountID) ([]models.ReputationChange, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT account_id, claim_id, delta, score, reason, changed_at
		FROM reputation_history
		WHERE account_id = $1
		ORDER BY seq
	`, string(account))
	if err != nil {
		return nil, fmt.Errorf("list reputation history: %w", err)
	}
	defer rows.Close()
	var out []models.ReputationChange
	for rows.Next() {
		var (
			c           models.ReputationChange
			participant string
			claim       int64
		)
		if err := rows.Scan(&participant, &claim, &c.Delta, &c.Score, &c.Reason, &c.At); err != nil {
			return nil, fmt.Errorf("scan reputation change: %w", err)
		}
		c.Participant, c.Claim = id.AccountID(participant), id.ClaimID(claim)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reputation history: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.Participant, error) {
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

func scanParticipant(row scanner) (*models.Participant, error) {
	var (
		p               models.Participant
		account, status string
		claims          []byte
	)
	if err := row.Scan(&account, &p.DID, &p.ProofRef, &status, &p.Active, &p.Reputation, &p.TotalVotes,
		&p.MajorityVotes, &p.LastActivity, &p.Stake, &claims, &p.RegisteredAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(claims, &p.Claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}
	if len(p.Claims) == 0 {
		p.Claims = nil
	}
	p.Account, p.Status = id.AccountID(account), models.Status(status)
	return &p, nil
}

func claimsOrEmpty(claims []id.ClaimID) []id.ClaimID {
	if claims == nil {
		return []id.ClaimID{}
	}
	return claims
}
