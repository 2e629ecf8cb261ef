package calibration

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fightpulse/calibration/internal/models"
)

// Entertainment score domain. Interval bounds are clamped here at every
// boundary.
const (
	ScoreMin = 0.0
	ScoreMax = 100.0
)

// DefaultCoverageGapLimit is the coverage shortfall beyond which intervals
// are considered degraded: five points between nominal and empirical.
const DefaultCoverageGapLimit = 0.05

// ConformalFit is the result of fitting a split conformal threshold.
type ConformalFit struct {
	Threshold     float64
	CoverageLevel float64
	SampleSize    int
	Rank          int
	Scores        NonconformitySummary
}

// NonconformitySummary describes the distribution of calibration-set
// nonconformity scores, for reports.
type NonconformitySummary struct {
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Interval is a two-sided prediction interval on the score scale.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns the interval width.
func (iv Interval) Width() float64 {
	return iv.Upper - iv.Lower
}

// Contains reports whether v falls inside the interval, bounds included.
func (iv Interval) Contains(v float64) bool {
	return v >= iv.Lower && v <= iv.Upper
}

// CoverageResult is the outcome of validating a threshold on held-out pairs.
type CoverageResult struct {
	Nominal    float64 `json:"nominal"`
	Empirical  float64 `json:"empirical"`
	Gap        float64 `json:"gap"`
	SampleSize int     `json:"sample_size"`
	Covered    int     `json:"covered"`
	// ShortfallPValue is the binomial probability of seeing at most the
	// observed hit count if true coverage equalled the nominal level. Small
	// values mean the shortfall is unlikely to be sampling noise.
	ShortfallPValue float64 `json:"shortfall_p_value"`
}

// DegradedBeyond reports whether the empirical coverage falls short of
// nominal by more than limit. Overcoverage never degrades: the conformal
// guarantee is one-sided.
func (c CoverageResult) DegradedBeyond(limit float64) bool {
	return c.Gap > limit
}

// FitConformal computes the split conformal threshold for the given coverage
// level: nonconformity scores |predicted - actual| sorted ascending, with
// the threshold at the ceil((n+1)*coverage)/n empirical quantile. The (n+1)
// correction, not the naive n*coverage order statistic, is what yields the
// finite-sample marginal coverage guarantee; the rank is capped at n.
func FitConformal(pairs []Pair, coverageLevel float64, minSamples int) (*ConformalFit, error) {
	if coverageLevel <= 0 || coverageLevel >= 1 {
		return nil, models.NewValidationError("coverage_level", "must be strictly between 0 and 1")
	}
	if len(pairs) < minSamples {
		return nil, &InsufficientDataError{Got: len(pairs), Need: minSamples}
	}

	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		scores[i] = math.Abs(p.Predicted - p.Actual)
	}
	sort.Float64s(scores)

	n := len(scores)
	rank := int(math.Ceil(float64(n+1) * coverageLevel))
	if rank > n {
		rank = n
	}
	if rank < 1 {
		rank = 1
	}

	return &ConformalFit{
		Threshold:     scores[rank-1],
		CoverageLevel: coverageLevel,
		SampleSize:    n,
		Rank:          rank,
		Scores:        summarizeScores(scores),
	}, nil
}

// PredictInterval returns [value-threshold, value+threshold] clamped to the
// score domain. If clamping would ever invert the bounds the interval
// collapses to the clamped point value.
func PredictInterval(value, threshold float64) Interval {
	lower := clampScore(value - threshold)
	upper := clampScore(value + threshold)
	if lower > upper {
		point := clampScore(value)
		return Interval{Lower: point, Upper: point}
	}
	return Interval{Lower: lower, Upper: upper}
}

// ValidateCoverage measures the fraction of held-out actuals falling inside
// the interval around their prediction. Empty input returns a neutral
// result.
func ValidateCoverage(pairs []Pair, threshold, coverageLevel float64) CoverageResult {
	result := CoverageResult{
		Nominal:         coverageLevel,
		SampleSize:      len(pairs),
		ShortfallPValue: 1,
	}
	if len(pairs) == 0 {
		return result
	}

	covered := 0
	for _, p := range pairs {
		if PredictInterval(p.Predicted, threshold).Contains(p.Actual) {
			covered++
		}
	}
	result.Covered = covered
	result.Empirical = float64(covered) / float64(len(pairs))
	result.Gap = coverageLevel - result.Empirical

	binom := distuv.Binomial{N: float64(len(pairs)), P: coverageLevel}
	result.ShortfallPValue = binom.CDF(float64(covered))
	return result
}

func clampScore(v float64) float64 {
	return math.Max(ScoreMin, math.Min(ScoreMax, v))
}

func summarizeScores(sorted []float64) NonconformitySummary {
	return NonconformitySummary{
		Median: quantileOrZero(stats.Median, sorted),
		P90:    percentileOrZero(sorted, 90),
		Max:    quantileOrZero(stats.Max, sorted),
	}
}

func quantileOrZero(fn func(stats.Float64Data) (float64, error), data []float64) float64 {
	v, err := fn(data)
	if err != nil {
		return 0
	}
	return v
}

func percentileOrZero(data []float64, percent float64) float64 {
	v, err := stats.Percentile(data, percent)
	if err != nil {
		return 0
	}
	return v
}
