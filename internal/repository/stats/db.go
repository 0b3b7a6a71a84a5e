// Package stats queries the read-only esports statistics database. The
// driver is selected by configuration: mysql in deployments that share the
// ingest pipeline's database, sqlite for local development snapshots.
package stats

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/rifthq/smartstats/internal/config"
)

// DB wraps the stats database handle.
type DB struct {
	sql *sql.DB
}

// Open connects to the stats database using the configured driver.
func Open(ctx context.Context, cfg config.StatsConfig) (*DB, error) {
	switch cfg.Driver {
	case "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported stats driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping stats database: %w", err)
	}
	return &DB{sql: db}, nil
}

// Close closes the stats database handle.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Ping verifies stats database connectivity.
func (db *DB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}
