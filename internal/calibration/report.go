package calibration

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
)

// Quality is the coarse calibration grade derived from Brier and ECE.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityModerate  Quality = "moderate"
	QualityPoor      Quality = "poor"
	// QualityUnknown marks an empty window; the classifier needs samples.
	QualityUnknown Quality = "unknown"
)

// PredictionStats summarizes the distribution of predicted values in a
// window.
type PredictionStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

// Report is the full calibration evaluation for one window. It is the
// structure snapshotted into PlattParameters.MetricsAfter.
type Report struct {
	SampleSize  int              `json:"sample_size"`
	BaseRate    float64          `json:"base_rate"`
	Brier       float64          `json:"brier"`
	ECE         float64          `json:"ece"`
	MCE         float64          `json:"mce"`
	SkillScore  float64          `json:"skill_score"`
	Quality     Quality          `json:"quality"`
	Predictions PredictionStats  `json:"predictions"`
	Bins        []CalibrationBin `json:"bins,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}

// Summary renders the plain-text block used in CLI output and notifications.
func (r Report) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "samples: %d  base rate: %.3f\n", r.SampleSize, r.BaseRate)
	fmt.Fprintf(&sb, "brier: %.4f  ece: %.4f  mce: %.4f  skill: %.4f\n", r.Brier, r.ECE, r.MCE, r.SkillScore)
	fmt.Fprintf(&sb, "predicted: mean %.3f  stddev %.3f\n", r.Predictions.Mean, r.Predictions.StdDev)
	fmt.Fprintf(&sb, "quality: %s\n", r.Quality)
	if r.Diagnostics != "" {
		fmt.Fprintf(&sb, "diagnostics: %s\n", r.Diagnostics)
	}

	populated := 0
	for _, b := range r.Bins {
		if b.Count > 0 {
			populated++
		}
	}
	if populated > 0 {
		sb.WriteString("reliability:\n")
		for _, b := range r.Bins {
			if b.Count == 0 {
				continue
			}
			fmt.Fprintf(&sb, "  (%.2f, %.2f]  pred %.3f  obs %.3f  n=%d\n",
				b.LowerBound, b.UpperBound, b.MeanPredicted, b.MeanActual, b.Count)
		}
	}
	return sb.String()
}

func summarizePredictions(pairs []Pair) PredictionStats {
	if len(pairs) == 0 {
		return PredictionStats{}
	}
	preds := make([]float64, len(pairs))
	for i, p := range pairs {
		preds[i] = p.Predicted
	}
	mean, err := stats.Mean(preds)
	if err != nil {
		return PredictionStats{}
	}
	sd, err := stats.StandardDeviation(preds)
	if err != nil {
		return PredictionStats{Mean: mean}
	}
	return PredictionStats{Mean: mean, StdDev: sd}
}
