// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// InitDB initializes the database connection pool from a Postgres URL.
func InitDB(databaseURL string) error {
	var err error
	DB, err = sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS call_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			call_id UUID NOT NULL,
			call_type VARCHAR(32) NOT NULL,
			user_address VARCHAR(128),
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,

			-- Post-call ledger state
			global_state JSONB NOT NULL,
			position JSONB
		);
		CREATE INDEX IF NOT EXISTS idx_call_snapshots_recorded_at ON call_snapshots(recorded_at DESC);
		CREATE INDEX IF NOT EXISTS idx_call_snapshots_user ON call_snapshots(user_address);
		CREATE INDEX IF NOT EXISTS idx_call_snapshots_call_type ON call_snapshots(call_type);

		CREATE TABLE IF NOT EXISTS bad_debt_events (
			event_id SERIAL PRIMARY KEY,
			call_id UUID NOT NULL,
			user_address VARCHAR(128) NOT NULL,
			units_written_off NUMERIC(40, 0) NOT NULL,
			shortfall_amount NUMERIC(40, 0) NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_bad_debt_events_timestamp ON bad_debt_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_bad_debt_events_user ON bad_debt_events(user_address);

		CREATE TABLE IF NOT EXISTS harvest_receipts (
			receipt_id SERIAL PRIMARY KEY,
			call_id UUID NOT NULL,
			claimed JSONB NOT NULL,
			fees_skimmed JSONB NOT NULL,
			shares_bonded NUMERIC(40, 0) NOT NULL,
			harvest_timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_harvest_receipts_timestamp ON harvest_receipts(harvest_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
