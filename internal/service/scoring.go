package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/fightpulse/calibration/internal/calibration"
	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/logger"
	"github.com/fightpulse/calibration/internal/metrics"
	"github.com/fightpulse/calibration/internal/models"
	"github.com/fightpulse/calibration/internal/repository"
)

// CalibratedScorer applies the active calibration parameters to raw model
// outputs. Active rows are cached for the configured TTL so scoring a batch
// does not hit the store per prediction; a stream with no usable parameters
// falls back to the identity transform and a zero-width threshold.
type CalibratedScorer struct {
	paramRepo repository.ParameterRepository
	cfg       *config.CalibrationConfig
	log       *logger.CalibrationLogger
	params    *cache.Cache
}

// NewCalibratedScorer creates a new calibrated scorer.
func NewCalibratedScorer(
	paramRepo repository.ParameterRepository,
	cfg *config.CalibrationConfig,
	baseLogger *logrus.Logger,
) *CalibratedScorer {
	ttl := cfg.ParamCacheTTL()
	return &CalibratedScorer{
		paramRepo: paramRepo,
		cfg:       cfg,
		log:       logger.NewCalibrationLogger(baseLogger),
		params:    cache.New(ttl, 2*ttl),
	}
}

// CalibratedProbability rescales a raw finish probability through the
// stream's active Platt transform.
func (s *CalibratedScorer) CalibratedProbability(ctx context.Context, stream string, raw float64) (float64, error) {
	platt, err := s.activePlatt(ctx, stream)
	if err != nil {
		return 0, err
	}
	return calibration.Apply(raw, platt.A, platt.B), nil
}

// ScoreInterval returns the calibrated entertainment score and its
// prediction interval at the given coverage level.
func (s *CalibratedScorer) ScoreInterval(ctx context.Context, stream string, rawScore, coverageLevel float64) (float64, calibration.Interval, error) {
	platt, err := s.activePlatt(ctx, stream)
	if err != nil {
		return 0, calibration.Interval{}, err
	}
	calibrated := correctScore(rawScore, platt.A, platt.B)

	conformal, err := s.activeConformal(ctx, stream, coverageLevel)
	if err != nil {
		return 0, calibration.Interval{}, err
	}
	return calibrated, calibration.PredictInterval(calibrated, conformal.Threshold), nil
}

func (s *CalibratedScorer) activePlatt(ctx context.Context, stream string) (*models.PlattParameters, error) {
	key := "platt:" + stream
	if v, ok := s.params.Get(key); ok {
		metrics.RecordParamCacheHit()
		return v.(*models.PlattParameters), nil
	}
	metrics.RecordParamCacheMiss()

	platt, err := s.paramRepo.GetActivePlatt(ctx, stream)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.log.LogIdentityFallback(stream, "platt-missing")
		platt = models.IdentityPlatt(stream)
	case err != nil:
		return nil, fmt.Errorf("failed to load active platt parameters for %s: %w", stream, err)
	case !platt.IsValidAt(time.Now().UTC()):
		s.log.LogIdentityFallback(stream, "platt-stale")
		platt = models.IdentityPlatt(stream)
	}
	s.params.Set(key, platt, cache.DefaultExpiration)
	return platt, nil
}

func (s *CalibratedScorer) activeConformal(ctx context.Context, stream string, level float64) (*models.ConformalParameters, error) {
	key := fmt.Sprintf("conformal:%s:%.2f", stream, level)
	if v, ok := s.params.Get(key); ok {
		metrics.RecordParamCacheHit()
		return v.(*models.ConformalParameters), nil
	}
	metrics.RecordParamCacheMiss()

	conformal, err := s.paramRepo.GetActiveConformal(ctx, stream, level)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.log.LogIdentityFallback(stream, "conformal-missing")
		conformal = models.IdentityConformal(stream, level)
	case err != nil:
		return nil, fmt.Errorf("failed to load active conformal parameters for %s: %w", stream, err)
	case !conformal.IsValidAt(time.Now().UTC()):
		s.log.LogIdentityFallback(stream, "conformal-stale")
		conformal = models.IdentityConformal(stream, level)
	}
	s.params.Set(key, conformal, cache.DefaultExpiration)
	return conformal, nil
}

// applyPlatt corrects the predicted side of probability pairs through the
// transform.
func applyPlatt(pairs []calibration.Pair, a, b float64) []calibration.Pair {
	out := make([]calibration.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = calibration.Pair{Predicted: calibration.Apply(p.Predicted, a, b), Actual: p.Actual}
	}
	return out
}

// correctScore maps a raw 0-100 score through the Platt transform on the
// probability scale. The probability clamp keeps corrected scores inside
// the domain.
func correctScore(score, a, b float64) float64 {
	return calibration.ScoreMax * calibration.Apply(score/calibration.ScoreMax, a, b)
}

func correctScores(pairs []calibration.Pair, a, b float64) []calibration.Pair {
	out := make([]calibration.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = calibration.Pair{Predicted: correctScore(p.Predicted, a, b), Actual: p.Actual}
	}
	return out
}
