// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"visa-portal/internal/common/config"
)

// PostgresClient owns the connection pool behind the postgres storage driver.
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens the pool lazily and sizes it from storage config.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("postgres host and database are required")
	}
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres %s/%s: %w", cfg.Host, cfg.Database, err)
	}
	applyPool(db, cfg)
	return &PostgresClient{DB: db}, nil
}

func applyPool(db *sql.DB, cfg config.PostgresConfig) {
	db.SetMaxOpenConns(cfg.MaxConnections)
	idle := cfg.MaxIdle
	if cfg.MaxConnections > 0 && idle > cfg.MaxConnections {
		idle = cfg.MaxConnections
	}
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(config.GetDuration(cfg.ConnMaxLife))
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}
