// Package database opens the PostgreSQL pool that backs the ledger.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mutualpool/internal/platform/config"
)

const connectTimeout = 5 * time.Second

// schemaMarker is created by the last ledger migration. Its absence means the
// server is pointed at an unmigrated database.
const schemaMarker = "claims"

var ErrSchemaMissing = errors.New("ledger schema not migrated")

// Pool owns the *sql.DB shared by the ledger transaction runner and the
// outbox store.
type Pool struct {
	db *sql.DB
}

// New opens the pool through the pgx stdlib driver, verifies connectivity and
// schema, and exports connection statistics to reg. An empty URL returns
// nil, nil and the caller falls back to in-memory state.
func New(cfg config.Database, reg prometheus.Registerer) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	p := &Pool{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := p.Health(ctx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, err
	}

	if reg != nil {
		if err := reg.Register(collectors.NewDBStatsCollector(db, "mutualpool")); err != nil {
			db.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("register db stats: %w", err)
		}
	}
	return p, nil
}

// DB returns the underlying handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health pings the server and checks the ledger schema is present.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database not configured")
	}
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	var present bool
	if err := p.db.QueryRowContext(ctx, `SELECT to_regclass($1) IS NOT NULL`, schemaMarker).Scan(&present); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
