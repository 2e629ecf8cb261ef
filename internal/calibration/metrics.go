package calibration

import (
	"fmt"
	"math"
)

// Default bin counts for reliability binning. Small windows get coarser bins
// so per-bin frequencies stay meaningful.
const (
	DefaultBins            = 10
	SmallSampleBins        = 5
	SmallSampleThreshold   = 500
	probabilityDomainUpper = 1.0
)

// Pair is one (predicted, actual) observation. For probability metrics the
// actual value is the {0,1} outcome; for score metrics both sides live on
// the 0-100 scale.
type Pair struct {
	Predicted float64
	Actual    float64
}

// CalibrationBin is one reliability bin: predictions falling in
// (LowerBound, UpperBound] with their mean prediction and observed
// frequency. Derived on demand, never persisted.
type CalibrationBin struct {
	LowerBound    float64 `json:"lower_bound"`
	UpperBound    float64 `json:"upper_bound"`
	MeanPredicted float64 `json:"mean_predicted"`
	MeanActual    float64 `json:"mean_actual"`
	Count         int     `json:"count"`
}

func (b CalibrationBin) gap() float64 {
	return math.Abs(b.MeanActual - b.MeanPredicted)
}

// BrierScore returns the mean squared error between predicted probabilities
// and {0,1} outcomes. Empty input returns 0.
func BrierScore(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range pairs {
		diff := p.Predicted - p.Actual
		sum += diff * diff
	}
	return sum / float64(len(pairs))
}

// Bin partitions pairs by predicted value into nBins equal-width half-open
// intervals: a prediction of exactly 0 falls in bin 0, every other value
// falls in the unique bin with lower < v <= upper. nBins <= 0 selects the
// default, which drops to SmallSampleBins below SmallSampleThreshold pairs.
func Bin(pairs []Pair, nBins int) []CalibrationBin {
	if nBins <= 0 {
		nBins = DefaultBins
		if len(pairs) < SmallSampleThreshold {
			nBins = SmallSampleBins
		}
	}

	bins := make([]CalibrationBin, nBins)
	width := probabilityDomainUpper / float64(nBins)
	for i := range bins {
		bins[i].LowerBound = float64(i) * width
		bins[i].UpperBound = float64(i+1) * width
	}
	// Last upper bound is exactly the domain edge regardless of float error.
	bins[nBins-1].UpperBound = probabilityDomainUpper

	predSums := make([]float64, nBins)
	actualSums := make([]float64, nBins)
	for _, p := range pairs {
		idx := nBins - 1
		for i := range bins {
			if p.Predicted <= bins[i].UpperBound {
				idx = i
				break
			}
		}
		bins[idx].Count++
		predSums[idx] += p.Predicted
		actualSums[idx] += p.Actual
	}

	for i := range bins {
		if bins[i].Count == 0 {
			continue
		}
		bins[i].MeanPredicted = predSums[i] / float64(bins[i].Count)
		bins[i].MeanActual = actualSums[i] / float64(bins[i].Count)
	}
	return bins
}

// ECE returns the expected calibration error: the count-weighted mean gap
// between observed frequency and mean prediction across bins. Empty bins
// contribute nothing.
func ECE(bins []CalibrationBin, total int) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bins {
		if b.Count == 0 {
			continue
		}
		sum += float64(b.Count) / float64(total) * b.gap()
	}
	return sum
}

// MCE returns the maximum calibration error: the largest per-bin gap over
// non-empty bins. Always >= ECE for the same binning.
func MCE(bins []CalibrationBin) float64 {
	maxGap := 0.0
	for _, b := range bins {
		if b.Count == 0 {
			continue
		}
		if g := b.gap(); g > maxGap {
			maxGap = g
		}
	}
	return maxGap
}

// BrierSkillScore compares the Brier score against always predicting the
// empirical base rate: 1 is perfect, 0 matches the reference, negative is
// worse than the reference. A zero-variance reference returns 0 rather than
// dividing by zero.
func BrierSkillScore(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	baseRate := 0.0
	for _, p := range pairs {
		baseRate += p.Actual
	}
	baseRate /= float64(len(pairs))

	reference := 0.0
	for _, p := range pairs {
		diff := baseRate - p.Actual
		reference += diff * diff
	}
	reference /= float64(len(pairs))
	if reference == 0 {
		return 0
	}
	return 1 - BrierScore(pairs)/reference
}

// Evaluate computes the full calibration report for a window of probability
// pairs. Empty input yields a zeroed report with unknown quality, never an
// error.
func Evaluate(pairs []Pair, nBins int) Report {
	report := Report{
		SampleSize: len(pairs),
		Quality:    QualityUnknown,
	}
	if len(pairs) == 0 {
		report.Diagnostics = "no samples in window"
		return report
	}

	report.Bins = Bin(pairs, nBins)
	report.Brier = BrierScore(pairs)
	report.ECE = ECE(report.Bins, len(pairs))
	report.MCE = MCE(report.Bins)
	report.SkillScore = BrierSkillScore(pairs)
	report.Predictions = summarizePredictions(pairs)
	for _, p := range pairs {
		report.BaseRate += p.Actual
	}
	report.BaseRate /= float64(len(pairs))

	report.Quality = gradeQuality(report.Brier, report.ECE)
	report.Diagnostics = describeWorstBin(report.Bins)
	return report
}

func gradeQuality(brier, ece float64) Quality {
	switch {
	case brier < 0.15 && ece < 0.05:
		return QualityExcellent
	case brier < 0.20 && ece < 0.10:
		return QualityGood
	case brier < 0.25 && ece < 0.15:
		return QualityModerate
	default:
		return QualityPoor
	}
}

func describeWorstBin(bins []CalibrationBin) string {
	worst := -1
	for i, b := range bins {
		if b.Count == 0 {
			continue
		}
		if worst < 0 || b.gap() > bins[worst].gap() {
			worst = i
		}
	}
	if worst < 0 {
		return "no populated bins"
	}
	b := bins[worst]
	return fmt.Sprintf("worst bin (%.2f, %.2f]: predicted %.3f vs observed %.3f over %d samples",
		b.LowerBound, b.UpperBound, b.MeanPredicted, b.MeanActual, b.Count)
}
