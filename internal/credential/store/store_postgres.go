package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"mutualpool/internal/credential/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists credentials in PostgreSQL.
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

const credentialColumns = `holder, license_ref, evidence_ref, issuer, issued_at, expires_at, status,
	status_reason, reputation, records_issued, claims_approved, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.Credential) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, string(c.Holder), c.LicenseRef, c.EvidenceRef, string(c.Issuer), c.IssuedAt, c.ExpiresAt,
		string(c.Status), c.StatusReason, c.Reputation, c.RecordsIssued, c.ClaimsApproved, c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHolder(ctx context.Context, holder id.AccountID) (*models.Credential, error) {
	row := s.execer().QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE holder = $1`, string(holder))
	return scanOne(row)
}

func (s *PostgresStore) FindByLicense(ctx context.Context, licenseRef string) (*models.Credential, error) {
	row := s.execer().QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE license_ref = $1`, licenseRef)
	return scanOne(row)
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Credential) error {
	res, err := s.execer().ExecContext(ctx, `
		UPDATE credentials
		SET evidence_ref = $2, expires_at = $3, status = $4, status_reason = $5,
		    reputation = $6, records_issued = $7, claims_approved = $8, updated_at = $9
		WHERE holder = $1
	`, string(c.Holder), c.EvidenceRef, c.ExpiresAt, string(c.Status), c.StatusReason,
		c.Reputation, c.RecordsIssued, c.ClaimsApproved, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByHolders(ctx context.Context, holders []id.AccountID) (map[id.AccountID]*models.Credential, error) {
	out := make(map[id.AccountID]*models.Credential, len(holders))
	if len(holders) == 0 {
		return out, nil
	}
	keys := make([]string, len(holders))
	for i, h := range holders {
		keys[i] = string(h)
	}
	rows, err := s.execer().QueryContext(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE holder = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		out[c.Holder] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (*models.Credential, error) {
	c, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

func scanCredential(row scanner) (*models.Credential, error) {
	var (
		c              models.Credential
		holder, issuer string
		status         string
	)
	if err := row.Scan(&holder, &c.LicenseRef, &c.EvidenceRef, &issuer, &c.IssuedAt, &c.ExpiresAt, &status,
		&c.StatusReason, &c.Reputation, &c.RecordsIssued, &c.ClaimsApproved, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Holder, c.Issuer, c.Status = id.AccountID(holder), id.AccountID(issuer), models.Status(status)
	return &c, nil
}
