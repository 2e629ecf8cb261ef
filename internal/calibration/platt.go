package calibration

import (
	"math"
)

// Probability outputs are clamped away from 0 and 1 so the logit stays
// finite at both ends.
const (
	ProbabilityFloor = 0.01
	ProbabilityCeil  = 0.99
)

// FitConfig holds the gradient-descent hyperparameters. The defaults are
// fixed for reproducibility; tests and the orchestrator use them as-is.
type FitConfig struct {
	LearningRate  float64
	MaxIterations int
	Epsilon       float64
	MinSamples    int
}

// DefaultFitConfig returns the standard hyperparameters.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		LearningRate:  0.01,
		MaxIterations: 5000,
		Epsilon:       1e-8,
		MinSamples:    10,
	}
}

// PlattFit is the result of one logistic recalibration fit.
type PlattFit struct {
	A          float64
	B          float64
	Iterations int
	Converged  bool
	SampleSize int
}

// Apply rescales p through the fitted transform.
func (f *PlattFit) Apply(p float64) float64 {
	return Apply(p, f.A, f.B)
}

// Sigmoid is the standard logistic function.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Logit is the log-odds transform; callers clamp p into (0,1) first.
func Logit(p float64) float64 {
	return math.Log(p / (1.0 - p))
}

// ClampProbability forces p into [ProbabilityFloor, ProbabilityCeil].
func ClampProbability(p float64) float64 {
	return math.Max(ProbabilityFloor, math.Min(ProbabilityCeil, p))
}

// Apply runs the Platt transform sigmoid(a*logit(p) + b). Both the input
// and the result are clamped so no caller ever sees a probability outside
// [ProbabilityFloor, ProbabilityCeil]. With a=1, b=0 the transform is the
// identity up to clamping.
func Apply(p, a, b float64) float64 {
	logit := Logit(ClampProbability(p))
	return ClampProbability(Sigmoid(a*logit + b))
}

// Fit estimates (a, b) by batch gradient descent on the averaged
// cross-entropy of sigmoid(a*x+b) against the {0,1} labels, with x the
// log-odds of the clamped raw probability. Averaging the gradients keeps the
// step size sample-size-invariant. The loop starts at the identity transform
// and stops early once both parameter deltas drop below Epsilon; it is
// deterministic for identical ordered input.
func Fit(pairs []Pair, cfg FitConfig) (*PlattFit, error) {
	if len(pairs) < cfg.MinSamples {
		return nil, &InsufficientDataError{Got: len(pairs), Need: cfg.MinSamples}
	}

	n := len(pairs)
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, p := range pairs {
		xs[i] = Logit(ClampProbability(p.Predicted))
		if p.Actual >= 0.5 {
			ys[i] = 1
		}
	}

	a, b := 1.0, 0.0
	size := float64(n)
	iterations := 0
	converged := false
	for iterations < cfg.MaxIterations {
		gradA := 0.0
		gradB := 0.0
		for i := 0; i < n; i++ {
			diff := Sigmoid(a*xs[i]+b) - ys[i]
			gradA += diff * xs[i]
			gradB += diff
		}
		gradA /= size
		gradB /= size

		deltaA := cfg.LearningRate * gradA
		deltaB := cfg.LearningRate * gradB
		a -= deltaA
		b -= deltaB
		iterations++

		if math.Abs(deltaA) < cfg.Epsilon && math.Abs(deltaB) < cfg.Epsilon {
			converged = true
			break
		}
	}

	return &PlattFit{
		A:          a,
		B:          b,
		Iterations: iterations,
		Converged:  converged,
		SampleSize: n,
	}, nil
}

// FitReport fits the transform and evaluates calibration before and after on
// the same pairs.
func FitReport(pairs []Pair, cfg FitConfig, nBins int) (*PlattFit, Report, Report, error) {
	before := Evaluate(pairs, nBins)
	fit, err := Fit(pairs, cfg)
	if err != nil {
		return nil, before, Report{}, err
	}

	corrected := make([]Pair, len(pairs))
	for i, p := range pairs {
		corrected[i] = Pair{Predicted: fit.Apply(p.Predicted), Actual: p.Actual}
	}
	after := Evaluate(corrected, nBins)
	return fit, before, after, nil
}
