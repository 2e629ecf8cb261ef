package weaklabel

import (
	"math"
	"testing"

	"github.com/fightpulse/calibration/internal/models"
)

func TestAggregateSingleVoter(t *testing.T) {
	stats := models.FightStats{BonusAwarded: strPtr(models.BonusFightOfTheNight)}

	agg := AggregateVotes(stats)

	if agg.Label != models.LabelHigh {
		t.Fatalf("expected HIGH, got %s", agg.Label)
	}
	if agg.Confidence != 1.0 {
		t.Errorf("lone voter should carry full confidence, got %f", agg.Confidence)
	}
	if agg.Score != 85 {
		t.Errorf("expected score 85, got %f", agg.Score)
	}
	if len(agg.ContributingFunctions) != 1 || agg.ContributingFunctions[0] != "bonus_award" {
		t.Errorf("unexpected contributing functions: %v", agg.ContributingFunctions)
	}
}

func TestAggregateAllAbstain(t *testing.T) {
	agg := AggregateVotes(models.FightStats{})

	if agg.Label != models.LabelAbstain {
		t.Fatalf("expected ABSTAIN, got %s", agg.Label)
	}
	if agg.Confidence != 0 {
		t.Errorf("expected zero confidence, got %f", agg.Confidence)
	}
	if agg.Score != 50 {
		t.Errorf("expected midpoint score 50, got %f", agg.Score)
	}
	if len(agg.ContributingFunctions) != 0 {
		t.Errorf("no function should contribute, got %v", agg.ContributingFunctions)
	}
	if len(agg.Votes) != len(Functions()) {
		t.Errorf("every function should record a vote, got %d of %d", len(agg.Votes), len(Functions()))
	}
}

func TestAggregateConflictingVotes(t *testing.T) {
	// Two knockdowns argue for excitement, but a low-output distance fight
	// outweighs them: LOW collects 0.7+0.6 against HIGH's 0.7.
	stats := models.FightStats{
		Finished:           boolPtr(false),
		Knockdowns:         intPtr(2),
		SignificantStrikes: intPtr(20),
		DurationSeconds:    intPtr(900),
	}

	agg := AggregateVotes(stats)

	if agg.Label != models.LabelLow {
		t.Fatalf("expected LOW to win, got %s", agg.Label)
	}
	if math.Abs(agg.Confidence-0.65) > 1e-9 {
		t.Errorf("expected confidence 0.65, got %f", agg.Confidence)
	}
	if agg.Score != 25 {
		t.Errorf("expected score 25, got %f", agg.Score)
	}
	want := []string{"strike_rate", "knockdowns", "decision_grind"}
	if len(agg.ContributingFunctions) != len(want) {
		t.Fatalf("unexpected contributors: %v", agg.ContributingFunctions)
	}
	for i, name := range want {
		if agg.ContributingFunctions[i] != name {
			t.Errorf("contributor %d: got %s, want %s", i, agg.ContributingFunctions[i], name)
		}
	}
}

func TestAggregateUnanimousAgreement(t *testing.T) {
	stats := models.FightStats{
		Finished:           boolPtr(true),
		FinishRound:        intPtr(1),
		DurationSeconds:    intPtr(45),
		SignificantStrikes: intPtr(30),
		Knockdowns:         intPtr(3),
		BonusAwarded:       strPtr(models.BonusKnockoutOfTheNight),
	}

	agg := AggregateVotes(stats)

	if agg.Label != models.LabelHigh {
		t.Fatalf("expected HIGH, got %s", agg.Label)
	}
	if agg.Confidence != 1.0 {
		t.Errorf("unanimous votes should yield full confidence, got %f", agg.Confidence)
	}
	if len(agg.ContributingFunctions) != 4 {
		t.Errorf("expected 4 contributors, got %v", agg.ContributingFunctions)
	}
}

func TestAggregateZeroConfidenceOnlyWhenAbstaining(t *testing.T) {
	inputs := []models.FightStats{
		{},
		{Finished: boolPtr(false)},
		{Finished: boolPtr(true), FinishRound: intPtr(1), DurationSeconds: intPtr(30)},
		{SignificantStrikes: intPtr(150), DurationSeconds: intPtr(900)},
		{Knockdowns: intPtr(1), SubmissionAttempts: intPtr(2)},
	}
	for i, stats := range inputs {
		agg := AggregateVotes(stats)
		if (agg.Confidence == 0) != (agg.Label == models.LabelAbstain) {
			t.Errorf("case %d: confidence %f with label %s", i, agg.Confidence, agg.Label)
		}
	}
}
