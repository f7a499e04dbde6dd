// Package postgres is a BatchLoader that appends sink records to a Postgres
// table using the COPY protocol.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/couchcryptid/geo-enrichment-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var columns = []string{"recorded_at", "measurement", "series_key", "tags", "fields"}

// pool is the subset of *pgxpool.Pool the writer uses.
type pool interface {
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Writer implements pipeline.BatchLoader on a Postgres table.
type Writer struct {
	pool   pool
	table  pgx.Identifier
	logger *slog.Logger
}

// NewWriter wraps an open pool. Call EnsureSchema before the first load.
func NewWriter(p *pgxpool.Pool, table string, logger *slog.Logger) *Writer {
	return newWriter(p, table, logger)
}

func newWriter(p pool, table string, logger *slog.Logger) *Writer {
	return &Writer{pool: p, table: pgx.Identifier{table}, logger: logger}
}

// Connect opens a pool and pings it, retrying with exponential backoff for up
// to maxElapsed while the database comes up.
func Connect(ctx context.Context, dsn string, maxElapsed time.Duration, logger *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	var p *pgxpool.Pool
	operation := func() error {
		candidate, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create connection pool: %w", err))
		}
		if err := candidate.Ping(ctx); err != nil {
			candidate.Close()
			return fmt.Errorf("ping postgres: %w", err)
		}
		p = candidate
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("postgres not ready, retrying", "error", err, "wait", wait)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(bo, ctx), notify); err != nil {
		return nil, err
	}
	return p, nil
}

// EnsureSchema creates the record table and its time index if missing.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	table := w.table.Sanitize()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	recorded_at timestamptz NOT NULL,
	measurement text        NOT NULL,
	series_key  text        NOT NULL,
	tags        jsonb       NOT NULL,
	fields      jsonb       NOT NULL
)`, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (measurement, recorded_at)`,
			pgx.Identifier{w.table[0] + "_measurement_time_idx"}.Sanitize(), table),
	}
	for _, stmt := range stmts {
		if _, err := w.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema %s: %w", table, err)
		}
	}
	return nil
}

// LoadBatch copies records into the table in one COPY. Records whose tags or
// fields cannot be encoded are dropped with a warning.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.Record) error {
	rows := make([][]any, 0, len(records))
	for i := range records {
		row, err := toRow(records[i])
		if err != nil {
			w.logger.Warn("dropping unencodable record", "error", err, "key", records[i].Key())
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	n, err := w.pool.CopyFrom(ctx, w.table, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy %d records into %s: %w", len(rows), w.table.Sanitize(), err)
	}
	w.logger.Debug("records copied", "rows", n, "table", w.table.Sanitize())
	return nil
}

func (w *Writer) Close() error {
	w.pool.Close()
	return nil
}

func toRow(rec domain.Record) ([]any, error) {
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return []any{rec.Time, rec.Measurement, rec.Key(), tags, fields}, nil
}
