package storage

import (
	"context"
	"fmt"

	"github.com/KevinKickass/airmedia-bridge/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, cfg config.DatabaseConfig) (*PostgresClient, error) {
	return NewPostgresClientFromDSN(ctx, cfg.DSN(), cfg.MaxConnections)
}

// NewPostgresClientFromDSN connects to dsn and makes sure the tables exist.
func NewPostgresClientFromDSN(ctx context.Context, dsn string, maxConns int) (*PostgresClient, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &PostgresClient{pool: pool}
	if err := client.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return client, nil
}

func (p *PostgresClient) Close() {
	p.pool.Close()
}

func (p *PostgresClient) Pool() *pgxpool.Pool {
	return p.pool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS device_statistics (
	id           BIGSERIAL PRIMARY KEY,
	device_id    UUID        NOT NULL,
	device_name  TEXT        NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	statistics   JSONB       NOT NULL
);
CREATE INDEX IF NOT EXISTS device_statistics_device_time
	ON device_statistics (device_id, collected_at DESC);

CREATE TABLE IF NOT EXISTS control_events (
	id          BIGSERIAL PRIMARY KEY,
	device_id   UUID        NOT NULL,
	device_name TEXT        NOT NULL,
	properties  JSONB       NOT NULL,
	success     BOOLEAN     NOT NULL,
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS control_events_device_time
	ON control_events (device_id, created_at DESC);
`

// EnsureSchema creates the history tables if they are missing.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
