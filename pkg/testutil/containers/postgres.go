//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"mutualpool/migrations"
)

// ledgerTables lists every table the migrations create, children first.
var ledgerTables = []string{
	"outbox",
	"claims",
	"wallets",
	"stakes",
	"fund_state",
	"reputation_history",
	"sybil_checkpoints",
	"identity_hashes",
	"participants",
	"credentials",
	"role_grants",
	"ledger_settings",
}

type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

func startPostgres(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("mutualpool_test"),
		postgres.WithUsername("mutualpool"),
		postgres.WithPassword("mutualpool_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, err
	}

	pc, err := connectPostgres(ctx, container)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}
	return pc, nil
}

func connectPostgres(ctx context.Context, container *postgres.PostgresContainer) (*PostgresContainer, error) {
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connection string: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	pc := &PostgresContainer{Container: container, DSN: dsn, DB: db}
	if err := pc.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return pc, nil
}

// migrate applies every *.up.sql file in name order.
func (p *PostgresContainer) migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	slices.Sort(names)
	for _, name := range names {
		body, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := p.DB.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// TruncateAll empties every ledger table and rewinds the claim sequence, so
// each test starts from an unconfigured ledger.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	stmt := "TRUNCATE TABLE " + strings.Join(ledgerTables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("truncate ledger: %w", err)
	}
	if _, err := p.DB.ExecContext(ctx, "ALTER SEQUENCE claim_id_seq RESTART WITH 1"); err != nil {
		return fmt.Errorf("reset claim sequence: %w", err)
	}
	return nil
}
