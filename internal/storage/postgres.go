package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jkh-code/nhl-win-factors-analysis/internal/parser"
	"github.com/jkh-code/nhl-win-factors-analysis/internal/types"
)

// PostgresRows appends rows to a single wide Postgres table.
type PostgresRows struct {
	pool    *pgxpool.Pool
	table   pgx.Identifier
	columns []string
	schema  parser.Schema
	mu      sync.Mutex
	count   int
	logger  *slog.Logger
}

// NewPostgresRows opens a connection pool and verifies connectivity. The
// table must already exist; `nhlstats schema` prints its definition.
func NewPostgresRows(ctx context.Context, dsn, table string, schema parser.Schema, logger *slog.Logger) (*PostgresRows, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = 2
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRows{
		pool:    pool,
		table:   pgx.Identifier(strings.Split(table, ".")),
		columns: schema.StoredColumns(),
		schema:  schema,
		logger:  logger.With("component", "postgres_rows"),
	}, nil
}

func (s *PostgresRows) Name() string { return "postgres" }

// Append copies the page's rows inside one transaction. Any failure rolls
// the whole page back.
func (s *PostgresRows) Append(ctx context.Context, rows []*types.Row) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("begin: %w", err)}
	}
	defer tx.Rollback(ctx)

	n, err := tx.CopyFrom(ctx, s.table, s.columns, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return s.schema.Values(rows[i]), nil
	}))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("copy rows: %w", err)}
	}
	if int(n) != len(rows) {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("copied %d of %d rows", n, len(rows))}
	}

	if err := tx.Commit(ctx); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("commit: %w", err)}
	}

	s.count += len(rows)
	s.logger.Debug("rows appended", "count", len(rows), "total", s.count)
	return nil
}

func (s *PostgresRows) Close() error {
	s.logger.Info("postgres sink closing", "total_rows", s.count)
	s.pool.Close()
	return nil
}
