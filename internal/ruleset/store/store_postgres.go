package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
)

// PostgresStore persists role grants and the settings row.
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

func (s *PostgresStore) HasRole(ctx context.Context, account id.AccountID, role models.Role) (bool, error) {
	var exists bool
	err := s.execer().QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM role_grants WHERE account_id = $1 AND role = $2)
	`, string(account), string(role)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GrantRole(ctx context.Context, grant models.Grant) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO role_grants (account_id, role, granted_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, role) DO UPDATE SET granted_at = EXCLUDED.granted_at
	`, string(grant.Account), string(grant.Role), grant.GrantedAt)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRole(ctx context.Context, account id.AccountID, role models.Role) (bool, error) {
	res, err := s.execer().ExecContext(ctx, `
		DELETE FROM role_grants WHERE account_id = $1 AND role = $2
	`, string(account), string(role))
	if err != nil {
		return false, fmt.Errorf("revoke role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke role rows: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListGrants(ctx context.Context, role models.Role) ([]models.Grant, error) {
	rows, err := s.execer().QueryContext(ctx, `
		SELECT account_id, role, granted_at FROM role_grants WHERE role = $1 ORDER BY account_id
	`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []models.Grant
	for rows.Next() {
		var (
			g       models.Grant
			account string
			r       string
		)
		if err := rows.Scan(&account, &r, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Account, g.Role = id.AccountID(account), models.Role(r)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Settings(ctx context.Context) (*models.Settings, error) {
	var (
		settings models.Settings
		last     sql.NullTime
	)
	err := s.execer().QueryRowContext(ctx, `
		SELECT open_registration, last_timestamp FROM ledger_settings WHERE id = 1
	`).Scan(&settings.OpenRegistration, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if last.Valid {
		settings.LastTimestamp = last.Time
	}
	return &settings, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	var last sql.NullTime
	if !settings.LastTimestamp.IsZero() {
		last = sql.NullTime{Time: settings.LastTimestamp, Valid: true}
	}
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO ledger_settings (id, open_registration, last_timestamp)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET open_registration = EXCLUDED.open_registration,
		    last_timestamp = EXCLUDED.last_timestamp
	`, settings.OpenRegistration, last)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
