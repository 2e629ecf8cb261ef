package database

import (
	"context"
	"fmt"

	"github.com/fightpulse/calibration/internal/config"
)

// schema is the bootstrap DDL. Statements are idempotent so startup can run
// them unconditionally; the partial unique indexes enforce at most one active
// parameter row per key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS prediction_outcomes (
		id UUID PRIMARY KEY,
		source_id TEXT NOT NULL,
		stream TEXT NOT NULL,
		predicted_probability DOUBLE PRECISION NOT NULL,
		predicted_score DOUBLE PRECISION NOT NULL,
		actual_finish BOOLEAN,
		actual_score DOUBLE PRECISION,
		label_source TEXT NOT NULL DEFAULT 'none',
		observed_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (source_id, stream)
	)`,
	`CREATE INDEX IF NOT EXISTS prediction_outcomes_stream_observed_idx
		ON prediction_outcomes (stream, observed_at)`,
	`CREATE TABLE IF NOT EXISTS fight_stats (
		source_id TEXT PRIMARY KEY,
		finished BOOLEAN,
		finish_round INTEGER,
		scheduled_rounds INTEGER NOT NULL DEFAULT 3,
		duration_seconds INTEGER,
		significant_strikes INTEGER,
		knockdowns INTEGER,
		submission_attempts INTEGER,
		control_seconds INTEGER,
		bonus_awarded TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS platt_parameters (
		id UUID PRIMARY KEY,
		stream TEXT NOT NULL,
		a DOUBLE PRECISION NOT NULL,
		b DOUBLE PRECISION NOT NULL,
		trained_on_count INTEGER NOT NULL,
		metrics_after JSONB,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_to TIMESTAMPTZ NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS platt_parameters_one_active_idx
		ON platt_parameters (stream) WHERE active`,
	`CREATE TABLE IF NOT EXISTS conformal_parameters (
		id UUID PRIMARY KEY,
		stream TEXT NOT NULL,
		coverage_level DOUBLE PRECISION NOT NULL,
		threshold DOUBLE PRECISION NOT NULL,
		trained_on_count INTEGER NOT NULL,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_to TIMESTAMPTZ NOT NULL,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS conformal_parameters_one_active_idx
		ON conformal_parameters (stream, coverage_level) WHERE active`,
	`CREATE TABLE IF NOT EXISTS weak_labels (
		id UUID PRIMARY KEY,
		source_id TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		contributing_functions TEXT[],
		votes JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Initialize creates a database connection pool and applies the bootstrap schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema applies the bootstrap DDL statements in order
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
