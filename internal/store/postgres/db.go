// Package postgres provides PostgreSQL-based implementations of the store interfaces.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"labwatch/internal/config"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, cfg *config.PostgresConfig) (*DB, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
		cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxOpenConns
	poolConfig.MinConns = cfg.MaxIdleConns
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// RunMigrations creates the required database tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id VARCHAR(36) PRIMARY KEY,
			type VARCHAR(40) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			item_id VARCHAR(64) NOT NULL,
			item_name VARCHAR(255) NOT NULL,
			category VARCHAR(100),
			current_value DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_by VARCHAR(255),
			resolved_at TIMESTAMP WITH TIME ZONE,
			actions JSONB NOT NULL DEFAULT '[]',
			metadata JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_item ON alerts(item_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(type);
		CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts(is_resolved);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_item_type
			ON alerts(item_id, type) WHERE NOT is_resolved;

		CREATE TABLE IF NOT EXISTS alert_rules (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			type VARCHAR(40) NOT NULL,
			conditions JSONB NOT NULL,
			severity VARCHAR(20) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			channels JSONB NOT NULL DEFAULT '[]',
			escalation JSONB,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alert_rules_active ON alert_rules(is_active);
	`

	_, err := db.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
