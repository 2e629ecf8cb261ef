package repository

import (
	"context"
	"time"

	"github.com/fightpulse/calibration/internal/models"
)

// OutcomeRepository defines the interface for prediction outcome data access.
// Outcome rows are written by the ingest pipeline and are read-only here;
// weak labels are joined in at query time, never written back.
type OutcomeRepository interface {
	ListByWindow(ctx context.Context, stream string, start, end time.Time) ([]*models.PredictionOutcome, error)
	ListUnlabeled(ctx context.Context, limit int, includeWeak bool) ([]*models.FightStats, error)
	CountByStream(ctx context.Context, stream string) (int, error)
	GetFightStats(ctx context.Context, sourceID string) (*models.FightStats, error)
}

// ParameterRepository defines the interface for calibration parameter data access
type ParameterRepository interface {
	GetActivePlatt(ctx context.Context, stream string) (*models.PlattParameters, error)
	GetLatestPlatt(ctx context.Context, stream string) (*models.PlattParameters, error)
	SavePlatt(ctx context.Context, params *models.PlattParameters) error
	GetActiveConformal(ctx context.Context, stream string, coverageLevel float64) (*models.ConformalParameters, error)
	SaveConformal(ctx context.Context, params *models.ConformalParameters) error
}

// WeakLabelRepository defines the interface for weak label data access
type WeakLabelRepository interface {
	Upsert(ctx context.Context, label *models.WeakLabel) error
	GetBySourceID(ctx context.Context, sourceID string) (*models.WeakLabel, error)
}
