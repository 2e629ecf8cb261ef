package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fightpulse/calibration/internal/models"
)

// strongFight ends in under a minute with a bonus attached: fast_finish and
// bonus_award both vote HIGH, so the aggregate confidence is 1.0.
func strongFight(sourceID string) *models.FightStats {
	return &models.FightStats{
		SourceID:        sourceID,
		Finished:        boolPtr(true),
		FinishRound:     intPtr(1),
		DurationSeconds: intPtr(45),
		ScheduledRounds: 3,
		BonusAwarded:    strPtr(models.BonusFightOfTheNight),
	}
}

// grindingFight goes the distance at three strikes a minute with heavy
// control time: strike_rate votes MEDIUM 0.4, decision_grind votes LOW 0.5,
// and LOW wins at confidence 0.5/0.9.
func grindingFight(sourceID string) *models.FightStats {
	return &models.FightStats{
		SourceID:           sourceID,
		Finished:           boolPtr(false),
		DurationSeconds:    intPtr(900),
		ScheduledRounds:    3,
		SignificantStrikes: intPtr(45),
		ControlSeconds:     intPtr(650),
	}
}

func TestRunBatchMixedOutcomes(t *testing.T) {
	outcomeRepo := &fakeOutcomeRepo{unlabeled: []*models.FightStats{
		strongFight("ufc-1"),
		{SourceID: "ufc-2", ScheduledRounds: 3},
		strongFight("ufc-3"),
		strongFight("ufc-4"),
	}}
	weakRepo := &fakeWeakRepo{
		authoritative: map[string]bool{"ufc-3": true},
		failOn:        map[string]error{"ufc-4": errors.New("insert timeout")},
	}
	svc := NewLabelingService(outcomeRepo, weakRepo, testLabelingConfig(), testLogger())

	result, err := svc.RunBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Candidates)
	assert.Equal(t, 1, result.Labeled)

	// ufc-2 has no stats to vote on, ufc-3 already has authoritative truth.
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, map[string]int{"HIGH": 1}, result.Distribution)
	assert.InDelta(t, 1.0, result.MeanConfidence, 1e-9)

	require.Len(t, weakRepo.upserts, 1)
	written := weakRepo.upserts[0]
	assert.Equal(t, "ufc-1", written.SourceID)
	assert.Equal(t, models.LabelHigh, written.Label)
	assert.InDelta(t, 85, written.Score, 1e-9)
	assert.InDelta(t, 1.0, written.Confidence, 1e-9)
	assert.Equal(t, []string{"fast_finish", "bonus_award"}, written.ContributingFunctions)
	assert.NotEmpty(t, written.Votes)

	report := result.Report()
	assert.Contains(t, report, "labeled: 1")
	assert.Contains(t, report, "HIGH=1")
}

func TestRunBatchConfidenceFloor(t *testing.T) {
	tests := []struct {
		name          string
		minConfidence float64
		wantLabeled   int
		wantSkipped   int
	}{
		{name: "configured floor admits the label", minConfidence: 0, wantLabeled: 1, wantSkipped: 0},
		{name: "raised floor rejects it", minConfidence: 0.7, wantLabeled: 0, wantSkipped: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomeRepo := &fakeOutcomeRepo{unlabeled: []*models.FightStats{grindingFight("ufc-9")}}
			weakRepo := &fakeWeakRepo{}
			svc := NewLabelingService(outcomeRepo, weakRepo, testLabelingConfig(), testLogger())

			result, err := svc.RunBatch(context.Background(), BatchOptions{MinConfidence: tt.minConfidence})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabeled, result.Labeled)
			assert.Equal(t, tt.wantSkipped, result.Skipped)
			assert.Len(t, weakRepo.upserts, tt.wantLabeled)
			if tt.wantLabeled > 0 {
				assert.Equal(t, models.LabelLow, weakRepo.upserts[0].Label)
				assert.InDelta(t, 25, weakRepo.upserts[0].Score, 1e-9)
				assert.InDelta(t, 0.5556, weakRepo.upserts[0].Confidence, 1e-4)
			}
		})
	}
}

func TestRunBatchPassesLimitAndForce(t *testing.T) {
	outcomeRepo := &fakeOutcomeRepo{}
	svc := NewLabelingService(outcomeRepo, &fakeWeakRepo{}, testLabelingConfig(), testLogger())

	_, err := svc.RunBatch(context.Background(), BatchOptions{Limit: 25, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 25, outcomeRepo.lastLimit)
	assert.True(t, outcomeRepo.lastIncludeWeak)

	cfg := testLabelingConfig()
	cfg.BatchLimit = 100
	svc = NewLabelingService(outcomeRepo, &fakeWeakRepo{}, cfg, testLogger())

	_, err = svc.RunBatch(context.Background(), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 100, outcomeRepo.lastLimit)
	assert.False(t, outcomeRepo.lastIncludeWeak)
}

func TestRunBatchListError(t *testing.T) {
	outcomeRepo := &fakeOutcomeRepo{listUnlabeledErr: errors.New("relation missing")}
	svc := NewLabelingService(outcomeRepo, &fakeWeakRepo{}, testLabelingConfig(), testLogger())

	result, err := svc.RunBatch(context.Background(), BatchOptions{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "failed to list unlabeled fights")
}

func TestPreview(t *testing.T) {
	outcomeRepo := &fakeOutcomeRepo{stats: map[string]*models.FightStats{
		"ufc-9": strongFight("ufc-9"),
	}}
	weakRepo := &fakeWeakRepo{}
	svc := NewLabelingService(outcomeRepo, weakRepo, testLabelingConfig(), testLogger())

	agg, err := svc.Preview(context.Background(), "ufc-9")
	require.NoError(t, err)
	assert.Equal(t, models.LabelHigh, agg.Label)
	assert.InDelta(t, 1.0, agg.Confidence, 1e-9)

	// Every function reports a vote, abstentions included.
	assert.Len(t, agg.Votes, 6)
	assert.Empty(t, weakRepo.upserts)
}

func TestPreviewUnknownFight(t *testing.T) {
	svc := NewLabelingService(&fakeOutcomeRepo{}, &fakeWeakRepo{}, testLabelingConfig(), testLogger())

	_, err := svc.Preview(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
