package calibration

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/fightpulse/calibration/internal/models"
)

func TestFitConformalThresholdRank(t *testing.T) {
	// Scores 1..10; rank = ceil(11*0.8) = 9, so the threshold is the 9th
	// smallest score.
	pairs := make([]Pair, 10)
	for i := range pairs {
		pairs[i] = Pair{Predicted: float64(i + 1), Actual: 0}
	}
	fit, err := FitConformal(pairs, 0.8, 10)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if fit.Rank != 9 {
		t.Fatalf("expected rank 9, got %d", fit.Rank)
	}
	if fit.Threshold != 9 {
		t.Fatalf("expected threshold 9, got %v", fit.Threshold)
	}
}

func TestFitConformalRankCappedAtSampleSize(t *testing.T) {
	pairs := make([]Pair, 10)
	for i := range pairs {
		pairs[i] = Pair{Predicted: float64(i + 1), Actual: 0}
	}
	fit, err := FitConformal(pairs, 0.95, 10)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if fit.Rank != 10 {
		t.Fatalf("expected rank capped at 10, got %d", fit.Rank)
	}
	if fit.Threshold != 10 {
		t.Fatalf("expected threshold at the max score, got %v", fit.Threshold)
	}
}

func TestFitConformalRejectsBadCoverage(t *testing.T) {
	pairs := make([]Pair, 20)
	for _, level := range []float64{0, 1, -0.2, 1.5} {
		_, err := FitConformal(pairs, level, 10)
		if err == nil {
			t.Fatalf("expected validation error for coverage %v", level)
		}
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for coverage %v, got %v", level, err)
		}
	}
}

func TestFitConformalInsufficientData(t *testing.T) {
	pairs := make([]Pair, 5)
	_, err := FitConformal(pairs, 0.9, 10)
	if !IsInsufficientData(err) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestPredictIntervalClamping(t *testing.T) {
	cases := []struct {
		value, threshold float64
		want             Interval
	}{
		{50, 10, Interval{40, 60}},
		{95, 10, Interval{85, 100}},
		{3, 10, Interval{0, 13}},
		{50, 0, Interval{50, 50}},
		{120, 5, Interval{100, 100}}, // out-of-domain point collapses after clamping
	}
	for _, c := range cases {
		got := PredictInterval(c.value, c.threshold)
		if got != c.want {
			t.Errorf("PredictInterval(%v, %v) = %+v, want %+v", c.value, c.threshold, got, c.want)
		}
	}
}

func TestIntervalContains(t *testing.T) {
	iv := Interval{Lower: 40, Upper: 60}
	if !iv.Contains(40) || !iv.Contains(60) || !iv.Contains(50) {
		t.Fatalf("bounds should be inclusive")
	}
	if iv.Contains(39.9) || iv.Contains(60.1) {
		t.Fatalf("values outside the interval reported as covered")
	}
	if iv.Width() != 20 {
		t.Fatalf("expected width 20, got %v", iv.Width())
	}
}

func TestValidateCoverageEmpirical(t *testing.T) {
	// Calibrate on 1000 draws with uniform noise in [-10, 10), validate on
	// 2000 fresh draws from the same distribution. Empirical coverage should
	// sit near the nominal level thanks to the (n+1) correction.
	rng := rand.New(rand.NewSource(42))
	calibration := make([]Pair, 1000)
	for i := range calibration {
		pred := 20 + 60*rng.Float64()
		calibration[i] = Pair{Predicted: pred, Actual: pred + (rng.Float64()*20 - 10)}
	}
	fit, err := FitConformal(calibration, 0.9, 10)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if fit.Threshold < 8.6 || fit.Threshold > 9.4 {
		t.Fatalf("threshold %v far from the 90th percentile of the noise", fit.Threshold)
	}

	holdout := make([]Pair, 2000)
	for i := range holdout {
		pred := 20 + 60*rng.Float64()
		holdout[i] = Pair{Predicted: pred, Actual: pred + (rng.Float64()*20 - 10)}
	}
	result := ValidateCoverage(holdout, fit.Threshold, 0.9)
	if result.Empirical < 0.86 {
		t.Fatalf("empirical coverage %v too far below nominal", result.Empirical)
	}
	if math.Abs(result.Empirical-0.9) > 0.04 {
		t.Fatalf("empirical coverage %v outside the expected band", result.Empirical)
	}
	if result.DegradedBeyond(DefaultCoverageGapLimit) {
		t.Fatalf("well-calibrated intervals reported as degraded: gap %v", result.Gap)
	}
}

func TestValidateCoverageDetectsShortfall(t *testing.T) {
	// Threshold of 1 against errors of 5 on 30% of the pairs: empirical
	// coverage 0.7 against nominal 0.9.
	pairs := make([]Pair, 20)
	for i := range pairs {
		actual := 50.0
		if i < 6 {
			actual = 55
		}
		pairs[i] = Pair{Predicted: 50, Actual: actual}
	}
	result := ValidateCoverage(pairs, 1, 0.9)
	if result.Covered != 14 {
		t.Fatalf("expected 14 covered, got %d", result.Covered)
	}
	if math.Abs(result.Gap-0.2) > eps {
		t.Fatalf("expected gap 0.2, got %v", result.Gap)
	}
	if !result.DegradedBeyond(DefaultCoverageGapLimit) {
		t.Fatalf("expected degradation beyond the gap limit")
	}
	if result.ShortfallPValue <= 0 || result.ShortfallPValue >= 0.05 {
		t.Fatalf("expected a small shortfall p-value, got %v", result.ShortfallPValue)
	}
}

func TestValidateCoverageOvercoverageNotDegraded(t *testing.T) {
	pairs := make([]Pair, 10)
	for i := range pairs {
		pairs[i] = Pair{Predicted: 50, Actual: 50}
	}
	result := ValidateCoverage(pairs, 25, 0.9)
	if result.Empirical != 1 {
		t.Fatalf("expected full coverage, got %v", result.Empirical)
	}
	if result.DegradedBeyond(DefaultCoverageGapLimit) {
		t.Fatalf("overcoverage must not count as degradation")
	}
}

func TestValidateCoverageEmpty(t *testing.T) {
	result := ValidateCoverage(nil, 5, 0.9)
	if result.SampleSize != 0 || result.Empirical != 0 {
		t.Fatalf("expected neutral result, got %+v", result)
	}
	if result.ShortfallPValue != 1 {
		t.Fatalf("expected neutral p-value 1, got %v", result.ShortfallPValue)
	}
}
