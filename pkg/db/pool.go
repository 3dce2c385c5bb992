// Package db provides database connection pooling via pgx.
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const logPrefix = "db:pool"

// PoolParams configures NewPool. Zero values use defaults.
type PoolParams struct {
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
}

func (p PoolParams) withDefaults() PoolParams {
	if p.MaxConns <= 0 {
		p.MaxConns = 20
	}
	if p.MinConns <= 0 {
		p.MinConns = 2
	}
	if p.MinConns > p.MaxConns {
		p.MinConns = p.MaxConns
	}
	return p
}

// NewPool creates a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, params PoolParams) (*pgxpool.Pool, error) {
	p := params.withDefaults()
	slog.Info(fmt.Sprintf("%s - Connecting to database", logPrefix))

	config, err := pgxpool.ParseConfig(p.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", logPrefix, err)
	}
	config.MaxConns = p.MaxConns
	config.MinConns = p.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", logPrefix, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", logPrefix))
	return pool, nil
}
