package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
)

// PostgresStore persists the fund ledger. Balances are NUMERIC(20,0) so the
// full uint64 range round-trips.
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

func (s *PostgresStore) State(ctx context.Context) (*models.State, error) {
	var (
		state   models.State
		stakers []byte
	)
	err := s.execer().QueryRowContext(ctx, `
		SELECT immediate, stable, risk, stakers FROM fund_state WHERE id = 1
	`).Scan(&state.Pool.Immediate, &state.Pool.Stable, &state.Pool.Risk, &stakers)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fund state: %w", err)
	}
	if err := json.Unmarshal(stakers, &state.Stakers); err != nil {
		return nil, fmt.Errorf("unmarshal stakers: %w", err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state *models.State) error {
	stakers := state.Stakers
	if stakers == nil {
		stakers = []id.AccountID{}
	}
	payload, err := json.Marshal(stakers)
	if err != nil {
		return fmt.Errorf("marshal stakers: %w", err)
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO fund_state (id, immediate, stable, risk, stakers)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET immediate = EXCLUDED.immediate, stable = EXCLUDED.stable,
		    risk = EXCLUDED.risk, stakers = EXCLUDED.stakers
	`, state.Pool.Immediate, state.Pool.Stable, state.Pool.Risk, payload)
	if err != nil {
		return fmt.Errorf("save fund state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Wallet(ctx context.Context, account id.AccountID) (uint64, error) {
	return s.readAmount(ctx, `SELECT balance FROM wallets WHERE account_id = $1`, account)
}

func (s *PostgresStore) SetWallet(ctx context.Context, account id.AccountID, balance uint64) error {
	return s.writeAmount(ctx, "wallets", "balance", account, balance)
}

func (s *PostgresStore) Stake(ctx context.Context, account id.AccountID) (uint64, error) {
	return s.readAmount(ctx, `SELECT amount FROM stakes WHERE account_id = $1`, account)
}

func (s *PostgresStore) SetStake(ctx context.Context, account id.AccountID, amount uint64) error {
	return s.writeAmount(ctx, "stakes", "amount", account, amount)
}

func (s *PostgresStore) readAmount(ctx context.Context, query string, account id.AccountID) (uint64, error) {
	var amount uint64
	err := s.execer().QueryRowContext(ctx, query, string(account)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read amount: %w", err)
	}
	return amount, nil
}

// writeAmount upserts a balance row, deleting it when the balance reaches zero.
// table and column are compile-time constants.
func (s *PostgresStore) writeAmount(ctx context.Context, table, column string, account id.AccountID, amount uint64) error {
	if amount == 0 {
		if _, err := s.execer().ExecContext(ctx, `DELETE FROM `+table+` WHERE account_id = $1`, string(account)); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
		return nil
	}
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO `+table+` (account_id, `+column+`)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET `+column+` = EXCLUDED.`+column,
		string(account), amount)
	if err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	return nil
}
