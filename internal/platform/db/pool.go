package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PoolStore runs units of work against a pgx connection pool.
type PoolStore struct {
	pool Acquirer
}

// NewPoolStore wraps pool so services can run scoped transactions on it.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: PgxAcquirer{Pool: pool}}
}

// WithTx implements TxRunner.
func (s *PoolStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, s.pool, fn)
}
