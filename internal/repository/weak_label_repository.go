package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fightpulse/calibration/internal/database"
	"github.com/fightpulse/calibration/internal/models"
)

// PostgresWeakLabelRepository implements WeakLabelRepository for PostgreSQL
type PostgresWeakLabelRepository struct {
	db database.Querier
}

// NewPostgresWeakLabelRepository creates a new weak label repository
func NewPostgresWeakLabelRepository(db database.Querier) WeakLabelRepository {
	return &PostgresWeakLabelRepository{db: db}
}

// Upsert inserts or replaces the weak label for a fight. The guard clause
// refuses to touch fights that already carry authoritative ground truth; in
// that case ErrAuthoritativeLabel is returned and nothing is written.
func (r *PostgresWeakLabelRepository) Upsert(ctx context.Context, label *models.WeakLabel) error {
	query := `
		INSERT INTO weak_labels (id, source_id, label, score, confidence, contributing_functions, votes)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM prediction_outcomes po
			WHERE po.source_id = $2 AND po.label_source = 'authoritative'
		)
		ON CONFLICT (source_id) DO UPDATE SET
			label = EXCLUDED.label,
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			contributing_functions = EXCLUDED.contributing_functions,
			votes = EXCLUDED.votes,
			updated_at = NOW()
	`

	commandTag, err := r.db.Exec(ctx, query,
		label.ID, label.SourceID, label.Label, label.Score, label.Confidence,
		label.ContributingFunctions, label.Votes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert weak label: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return models.ErrAuthoritativeLabel
	}

	return nil
}

// GetBySourceID retrieves the weak label for a fight
func (r *PostgresWeakLabelRepository) GetBySourceID(ctx context.Context, sourceID string) (*models.WeakLabel, error) {
	query := `
		SELECT id, source_id, label, score, confidence, contributing_functions, votes, created_at
		FROM weak_labels
		WHERE source_id = $1
	`

	label := &models.WeakLabel{}
	err := r.db.QueryRow(ctx, query, sourceID).Scan(
		&label.ID, &label.SourceID, &label.Label, &label.Score, &label.Confidence,
		&label.ContributingFunctions, &label.Votes, &label.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weak label: %w", err)
	}

	return label, nil
}
