package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const callsLogPrefix = "db:calls"

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 1000
)

const insertCallSQL = `INSERT INTO bridge_calls (id, direction, tag, method, callback_id, outcome, detail, created_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	 ON CONFLICT (id) DO NOTHING`

// callsDB is the subset of *pgxpool.Pool the store uses.
type callsDB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CallStore provides database access for the call journal.
type CallStore struct {
	pool callsDB
}

// NewCallStore creates a new CallStore with the given connection pool.
func NewCallStore(pool *pgxpool.Pool) *CallStore {
	return &CallStore{pool: pool}
}

// InsertCalls writes records in one batch. Records whose id already exists are ignored.
// A batch runs as one implicit transaction, so when it fails the records are retried one by one
// and only the rows Postgres still refuses are lost; the returned error names them.
func (s *CallStore) InsertCalls(ctx context.Context, records []CallRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		r = sanitizeRecord(r)
		batch.Queue(insertCallSQL, r.ID, r.Direction, r.Tag, r.Method, r.CallbackID, r.Outcome, r.Detail, r.CreatedAt)
	}

	batchErr := s.pool.SendBatch(ctx, batch).Close()
	if batchErr == nil {
		slog.Debug(fmt.Sprintf("%s - Inserted %d calls", callsLogPrefix, len(records)))
		return nil
	}
	if len(records) == 1 {
		return fmt.Errorf("%s - failed to insert call %s: %w", callsLogPrefix, records[0].ID, batchErr)
	}

	slog.Warn(fmt.Sprintf("%s - Batch of %d calls failed, retrying row by row: %v", callsLogPrefix, len(records), batchErr))
	var errs []error
	for _, r := range records {
		r = sanitizeRecord(r)
		if _, err := s.pool.Exec(ctx, insertCallSQL, r.ID, r.Direction, r.Tag, r.Method, r.CallbackID, r.Outcome, r.Detail, r.CreatedAt); err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", r.ID, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s - failed to insert %d of %d calls: %w", callsLogPrefix, len(errs), len(records), errors.Join(errs...))
	}
	return nil
}

// sanitizeRecord removes NUL bytes, which Postgres TEXT columns reject.
func sanitizeRecord(r CallRecord) CallRecord {
	r.Direction = stripNUL(r.Direction)
	r.Tag = stripNUL(r.Tag)
	r.Method = stripNUL(r.Method)
	r.Outcome = stripNUL(r.Outcome)
	r.Detail = stripNUL(r.Detail)
	return r
}

func stripNUL(s string) string {
	if !strings.ContainsRune(s, 0) {
		return s
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// RecentCalls returns the newest records, optionally filtered by tag.
func (s *CallStore) RecentCalls(ctx context.Context, tag string, limit int) ([]CallRecord, error) {
	limit = clampLimit(limit)

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, direction, tag, method, callback_id, outcome, detail, created_at
		 FROM bridge_calls
		 WHERE ($1 = '' OR tag = $1)
		 ORDER BY created_at DESC
		 LIMIT $2`, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to query calls: %w", callsLogPrefix, err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CallRecord, error) {
		var r CallRecord
		err := row.Scan(&r.ID, &r.Direction, &r.Tag, &r.Method, &r.CallbackID, &r.Outcome, &r.Detail, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to scan calls: %w", callsLogPrefix, err)
	}
	return records, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
