package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "funds-ledger"

// DB is the ledger's connection pool
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool and verifies it with a ping. Every session runs in
// UTC at READ COMMITTED, which is what the row-lock protocol on user_funds
// assumes. maxConns of zero keeps the pgxpool default.
func NewConnection(ctx context.Context, databaseURL string, maxConns int32) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	params := poolConfig.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	params["default_transaction_isolation"] = "read committed"
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}
