package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mutualpool/pkg/platform/outbox"
)

// Store implements outbox.Store using PostgreSQL.
type Store struct {
	db *sql.DB
	tx *sql.Tx
}

// New creates a PostgreSQL outbox store for the worker side.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewTx binds the store to a ledger transaction so appends commit with the operation.
func NewTx(tx *sql.Tx) *Store {
	return &Store{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Append adds a new entry to the outbox table.
func (s *Store) Append(ctx context.Context, entry *outbox.Entry) error {
	_, err := s.execer().ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, entry.Payload, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnprocessed returns up to limit entries that haven't been processed.
// Uses FOR UPDATE SKIP LOCKED to support concurrent workers without blocking.
func (s *Store) FetchUnprocessed(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	const maxBatch = 1000
	if limit > maxBatch {
		limit = maxBatch
	}
	rows, err := s.execer().QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, processed_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at ASC, seq ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unprocessed entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*outbox.Entry, 0, limit)
	for rows.Next() {
		var (
			e           outbox.Entry
			processedAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if processedAt.Valid {
			e.ProcessedAt = &processedAt.Time
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkProcessed marks an entry as successfully published.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	result, err := s.execer().ExecContext(ctx, `
		UPDATE outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL
	`, id, processedAt)
	if err != nil {
		return fmt.Errorf("mark outbox entry processed: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("outbox entry not found or already processed: %s", id)
	}
	return nil
}

// CountPending returns the number of unprocessed entries.
func (s *Store) CountPending(ctx context.Context) (int64, error) {
	var count int64
	if err := s.execer().QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE processed_at IS NULL`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pending entries: %w", err)
	}
	return count, nil
}

// DeleteProcessedBefore removes old processed entries.
func (s *Store) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.execer().ExecContext(ctx, `
		DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("delete processed entries: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected, nil
}
