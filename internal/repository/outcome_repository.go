package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fightpulse/calibration/internal/database"
	"github.com/fightpulse/calibration/internal/models"
)

// PostgresOutcomeRepository implements OutcomeRepository for PostgreSQL
type PostgresOutcomeRepository struct {
	db database.Querier
}

// NewPostgresOutcomeRepository creates a new outcome repository
func NewPostgresOutcomeRepository(db database.Querier) OutcomeRepository {
	return &PostgresOutcomeRepository{db: db}
}

// ListByWindow retrieves ground-truthed outcomes for a stream ordered by
// observation time. Weak labels are joined in: an outcome without
// authoritative truth borrows its actual score from the weak label row and
// reports label_source "weak".
func (r *PostgresOutcomeRepository) ListByWindow(ctx context.Context, stream string, start, end time.Time) ([]*models.PredictionOutcome, error) {
	query := `
		SELECT po.id, po.source_id, po.stream, po.predicted_probability, po.predicted_score,
			po.actual_finish,
			COALESCE(po.actual_score, wl.score) AS actual_score,
			CASE
				WHEN po.label_source = 'authoritative' THEN 'authoritative'
				WHEN wl.source_id IS NOT NULL THEN 'weak'
				ELSE 'none'
			END AS label_source,
			po.observed_at
		FROM prediction_outcomes po
		LEFT JOIN weak_labels wl ON wl.source_id = po.source_id
		WHERE po.stream = $1
			AND po.observed_at >= $2 AND po.observed_at < $3
			AND (po.label_source = 'authoritative' OR wl.source_id IS NOT NULL)
		ORDER BY po.observed_at ASC
	`

	rows, err := r.db.Query(ctx, query, stream, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*models.PredictionOutcome
	for rows.Next() {
		outcome := &models.PredictionOutcome{}
		err := rows.Scan(
			&outcome.ID, &outcome.SourceID, &outcome.Stream, &outcome.PredictedProbability,
			&outcome.PredictedScore, &outcome.ActualFinish, &outcome.ActualScore,
			&outcome.LabelSource, &outcome.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, rows.Err()
}

// ListUnlabeled retrieves fight statistics for completed fights that have a
// prediction on record but no authoritative ground truth and, unless
// includeWeak is set, no weak label yet. A limit of 0 means no cap.
func (r *PostgresOutcomeRepository) ListUnlabeled(ctx context.Context, limit int, includeWeak bool) ([]*models.FightStats, error) {
	query := `
		SELECT fs.source_id, fs.finished, fs.finish_round, fs.scheduled_rounds,
			fs.duration_seconds, fs.significant_strikes, fs.knockdowns,
			fs.submission_attempts, fs.control_seconds, fs.bonus_awarded
		FROM fight_stats fs
		WHERE fs.finished IS NOT NULL
			AND EXISTS (
				SELECT 1 FROM prediction_outcomes po WHERE po.source_id = fs.source_id
			)
			AND NOT EXISTS (
				SELECT 1 FROM prediction_outcomes po
				WHERE po.source_id = fs.source_id AND po.label_source = 'authoritative'
			)
			AND ($2::boolean OR NOT EXISTS (
				SELECT 1 FROM weak_labels wl WHERE wl.source_id = fs.source_id
			))
		ORDER BY fs.created_at ASC
		LIMIT NULLIF($1, 0)
	`

	rows, err := r.db.Query(ctx, query, limit, includeWeak)
	if err != nil {
		return nil, fmt.Errorf("failed to query unlabeled fights: %w", err)
	}
	defer rows.Close()

	var stats []*models.FightStats
	for rows.Next() {
		fight := &models.FightStats{}
		err := rows.Scan(
			&fight.SourceID, &fight.Finished, &fight.FinishRound, &fight.ScheduledRounds,
			&fight.DurationSeconds, &fight.SignificantStrikes, &fight.Knockdowns,
			&fight.SubmissionAttempts, &fight.ControlSeconds, &fight.BonusAwarded,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fight stats: %w", err)
		}
		stats = append(stats, fight)
	}

	return stats, rows.Err()
}

// CountByStream returns the number of ground-truthed outcomes for a stream
func (r *PostgresOutcomeRepository) CountByStream(ctx context.Context, stream string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM prediction_outcomes po
		LEFT JOIN weak_labels wl ON wl.source_id = po.source_id
		WHERE po.stream = $1
			AND (po.label_source = 'authoritative' OR wl.source_id IS NOT NULL)
	`

	var count int
	if err := r.db.QueryRow(ctx, query, stream).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count outcomes: %w", err)
	}

	return count, nil
}

// GetFightStats retrieves the raw statistics for a single fight
func (r *PostgresOutcomeRepository) GetFightStats(ctx context.Context, sourceID string) (*models.FightStats, error) {
	query := `
		SELECT source_id, finished, finish_round, scheduled_rounds, duration_seconds,
			significant_strikes, knockdowns, submission_attempts, control_seconds, bonus_awarded
		FROM fight_stats
		WHERE source_id = $1
	`

	fight := &models.FightStats{}
	err := r.db.QueryRow(ctx, query, sourceID).Scan(
		&fight.SourceID, &fight.Finished, &fight.FinishRound, &fight.ScheduledRounds,
		&fight.DurationSeconds, &fight.SignificantStrikes, &fight.Knockdowns,
		&fight.SubmissionAttempts, &fight.ControlSeconds, &fight.BonusAwarded,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fight stats: %w", err)
	}

	return fight, nil
}
