package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fightpulse/calibration/internal/database"
	"github.com/fightpulse/calibration/internal/models"
)

// PostgresParameterRepository implements ParameterRepository for PostgreSQL
type PostgresParameterRepository struct {
	db database.Querier
}

// NewPostgresParameterRepository creates a new parameter repository
func NewPostgresParameterRepository(db database.Querier) ParameterRepository {
	return &PostgresParameterRepository{db: db}
}

// GetActivePlatt retrieves the active Platt parameters for a stream
func (r *PostgresParameterRepository) GetActivePlatt(ctx context.Context, stream string) (*models.PlattParameters, error) {
	query := `
		SELECT id, stream, a, b, trained_on_count, metrics_after, valid_from, valid_to, active, created_at
		FROM platt_parameters
		WHERE stream = $1 AND active
	`

	return r.scanPlatt(r.db.QueryRow(ctx, query, stream))
}

// GetLatestPlatt retrieves the most recently created Platt parameters for a
// stream regardless of active state
func (r *PostgresParameterRepository) GetLatestPlatt(ctx context.Context, stream string) (*models.PlattParameters, error) {
	query := `
		SELECT id, stream, a, b, trained_on_count, metrics_after, valid_from, valid_to, active, created_at
		FROM platt_parameters
		WHERE stream = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanPlatt(r.db.QueryRow(ctx, query, stream))
}

func (r *PostgresParameterRepository) scanPlatt(row pgx.Row) (*models.PlattParameters, error) {
	params := &models.PlattParameters{}
	err := row.Scan(
		&params.ID, &params.Stream, &params.A, &params.B, &params.TrainedOnCount,
		&params.MetricsAfter, &params.ValidFrom, &params.ValidTo, &params.Active, &params.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get platt parameters: %w", err)
	}

	return params, nil
}

// SavePlatt persists new Platt parameters as the single active row for the
// stream. The prior active row is locked and deactivated in the same
// transaction, so the stream never has zero or two active rows and concurrent
// saves for one stream serialize on the row lock.
func (r *PostgresParameterRepository) SavePlatt(ctx context.Context, params *models.PlattParameters) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var lockedID uuid.UUID
		err := tx.QueryRow(ctx,
			"SELECT id FROM platt_parameters WHERE stream = $1 AND active FOR UPDATE",
			params.Stream,
		).Scan(&lockedID)
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("failed to lock active platt parameters: %w", err)
		}

		// Truncating valid_to keeps validity windows for the stream
		// non-overlapping across supersessions.
		_, err = tx.Exec(ctx,
			"UPDATE platt_parameters SET active = FALSE, valid_to = LEAST(valid_to, NOW()) WHERE stream = $1 AND active",
			params.Stream,
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate platt parameters: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO platt_parameters (id, stream, a, b, trained_on_count, metrics_after, valid_from, valid_to, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)`,
			params.ID, params.Stream, params.A, params.B, params.TrainedOnCount,
			params.MetricsAfter, params.ValidFrom, params.ValidTo,
		)
		if err != nil {
			return fmt.Errorf("failed to insert platt parameters: %w", err)
		}

		return nil
	})
}

// GetActiveConformal retrieves the active conformal parameters for a stream
// and coverage level
func (r *PostgresParameterRepository) GetActiveConformal(ctx context.Context, stream string, coverageLevel float64) (*models.ConformalParameters, error) {
	query := `
		SELECT id, stream, coverage_level, threshold, trained_on_count, valid_from, valid_to, active, created_at
		FROM conformal_parameters
		WHERE stream = $1 AND coverage_level = $2 AND active
	`

	params := &models.ConformalParameters{}
	err := r.db.QueryRow(ctx, query, stream, coverageLevel).Scan(
		&params.ID, &params.Stream, &params.CoverageLevel, &params.Threshold,
		&params.TrainedOnCount, &params.ValidFrom, &params.ValidTo, &params.Active, &params.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conformal parameters: %w", err)
	}

	return params, nil
}

// SaveConformal persists new conformal parameters as the single active row
// for the (stream, coverage level) pair, deactivating the prior active row in
// the same transaction
func (r *PostgresParameterRepository) SaveConformal(ctx context.Context, params *models.ConformalParameters) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var lockedID uuid.UUID
		err := tx.QueryRow(ctx,
			"SELECT id FROM conformal_parameters WHERE stream = $1 AND coverage_level = $2 AND active FOR UPDATE",
			params.Stream, params.CoverageLevel,
		).Scan(&lockedID)
		if err != nil && err != pgx.ErrNoRows {
			return fmt.Errorf("failed to lock active conformal parameters: %w", err)
		}

		_, err = tx.Exec(ctx,
			"UPDATE conformal_parameters SET active = FALSE, valid_to = LEAST(valid_to, NOW()) WHERE stream = $1 AND coverage_level = $2 AND active",
			params.Stream, params.CoverageLevel,
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate conformal parameters: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO conformal_parameters (id, stream, coverage_level, threshold, trained_on_count, valid_from, valid_to, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)`,
			params.ID, params.Stream, params.CoverageLevel, params.Threshold,
			params.TrainedOnCount, params.ValidFrom, params.ValidTo,
		)
		if err != nil {
			return fmt.Errorf("failed to insert conformal parameters: %w", err)
		}

		return nil
	})
}
