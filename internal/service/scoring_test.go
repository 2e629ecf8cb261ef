package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fightpulse/calibration/internal/models"
)

func activePlattFixture(stream string, a, b float64) *models.PlattParameters {
	now := time.Now().UTC()
	return &models.PlattParameters{
		ID: uuid.New(), Stream: stream, A: a, B: b, TrainedOnCount: 100,
		ValidFrom: now.AddDate(0, 0, -1), ValidTo: now.AddDate(0, 0, 44),
		Active: true, CreatedAt: now.AddDate(0, 0, -1),
	}
}

func activeConformalFixture(stream string, level, threshold float64) *models.ConformalParameters {
	now := time.Now().UTC()
	return &models.ConformalParameters{
		ID: uuid.New(), Stream: stream, CoverageLevel: level, Threshold: threshold,
		TrainedOnCount: 100,
		ValidFrom:      now.AddDate(0, 0, -1), ValidTo: now.AddDate(0, 0, 44),
		Active: true, CreatedAt: now.AddDate(0, 0, -1),
	}
}

func TestCalibratedProbabilityIdentityFallback(t *testing.T) {
	scorer := NewCalibratedScorer(&fakeParamRepo{}, testCalibrationConfig(), testLogger())

	p, err := scorer.CalibratedProbability(context.Background(), "ufc", 0.7)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, p, 1e-9)
}

func TestCalibratedProbabilityActiveTransform(t *testing.T) {
	paramRepo := &fakeParamRepo{platt: []*models.PlattParameters{activePlattFixture("ufc", 1, -0.5)}}
	scorer := NewCalibratedScorer(paramRepo, testCalibrationConfig(), testLogger())

	// logit(0.5) is zero, so the output is sigmoid(-0.5).
	p, err := scorer.CalibratedProbability(context.Background(), "ufc", 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.3775, p, 1e-4)
}

func TestCalibratedProbabilityCachesParams(t *testing.T) {
	paramRepo := &fakeParamRepo{platt: []*models.PlattParameters{activePlattFixture("ufc", 1.2, -0.3)}}
	scorer := NewCalibratedScorer(paramRepo, testCalibrationConfig(), testLogger())

	for i := 0; i < 5; i++ {
		_, err := scorer.CalibratedProbability(context.Background(), "ufc", 0.6)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, paramRepo.getPlattCalls)
}

func TestStalePlattFallsBackToIdentity(t *testing.T) {
	stale := activePlattFixture("ufc", 2, 1)
	stale.ValidFrom = time.Now().UTC().AddDate(0, 0, -60)
	stale.ValidTo = time.Now().UTC().AddDate(0, 0, -10)
	paramRepo := &fakeParamRepo{platt: []*models.PlattParameters{stale}}
	scorer := NewCalibratedScorer(paramRepo, testCalibrationConfig(), testLogger())

	p, err := scorer.CalibratedProbability(context.Background(), "ufc", 0.7)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, p, 1e-9)
}

func TestCalibratedProbabilityRepoError(t *testing.T) {
	paramRepo := &fakeParamRepo{getPlattErr: errors.New("boom")}
	scorer := NewCalibratedScorer(paramRepo, testCalibrationConfig(), testLogger())

	_, err := scorer.CalibratedProbability(context.Background(), "ufc", 0.7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load active platt parameters")
}

func TestScoreInterval(t *testing.T) {
	paramRepo := &fakeParamRepo{
		conformal: []*models.ConformalParameters{activeConformalFixture("ufc", 0.9, 8)},
	}
	scorer := NewCalibratedScorer(paramRepo, testCalibrationConfig(), testLogger())

	score, interval, err := scorer.ScoreInterval(context.Background(), "ufc", 70, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 70, score, 1e-9)
	assert.InDelta(t, 62, interval.Lower, 1e-9)
	assert.InDelta(t, 78, interval.Upper, 1e-9)
}

func TestScoreIntervalClampsToDomain(t *testing.T) {
	paramRepo := &fakeParamRepo{
		conformal: []*models.ConformalParameters{activeConformalFixture("ufc", 0.9, 8)},
	}
	scorer := NewCalibratedScorer(paramRepo, testCalibrationConfig(), testLogger())

	score, interval, err := scorer.ScoreInterval(context.Background(), "ufc", 95, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 95, score, 1e-9)
	assert.InDelta(t, 87, interval.Lower, 1e-9)
	assert.InDelta(t, 100, interval.Upper, 1e-9)
}

func TestScoreIntervalMissingConformal(t *testing.T) {
	scorer := NewCalibratedScorer(&fakeParamRepo{}, testCalibrationConfig(), testLogger())

	score, interval, err := scorer.ScoreInterval(context.Background(), "ufc", 70, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 70, score, 1e-9)

	// Zero-width interval signals the caller that no threshold is active.
	assert.InDelta(t, score, interval.Lower, 1e-9)
	assert.InDelta(t, score, interval.Upper, 1e-9)
}
