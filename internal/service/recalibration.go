// Package service wires the calibration domain logic to its stores: drift
// checking and refitting, calibrated scoring, and weak label batches.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fightpulse/calibration/internal/calibration"
	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/logger"
	"github.com/fightpulse/calibration/internal/metrics"
	"github.com/fightpulse/calibration/internal/models"
	"github.com/fightpulse/calibration/internal/repository"
)

// maxStreamConcurrency bounds how many streams RunAll refits at once.
const maxStreamConcurrency = 4

// RecalibrationState classifies the outcome of a recalibration run.
type RecalibrationState string

const (
	StateRecalibrated     RecalibrationState = "recalibrated"
	StateNoOpHealthy      RecalibrationState = "no-op-healthy"
	StateInsufficientData RecalibrationState = "insufficient-data"
	StateError            RecalibrationState = "error"
)

// RecalibrationResult is the structured outcome of one run for one stream.
type RecalibrationResult struct {
	RunID         uuid.UUID           `json:"run_id"`
	Stream        string              `json:"stream"`
	State         RecalibrationState  `json:"state"`
	SampleSize    int                 `json:"sample_size"`
	ScoreSamples  int                 `json:"score_samples"`
	NeededSamples int                 `json:"needed_samples,omitempty"`
	DriftReasons  []string            `json:"drift_reasons,omitempty"`
	A             float64             `json:"a,omitempty"`
	B             float64             `json:"b,omitempty"`
	Before        *calibration.Report `json:"before,omitempty"`
	After         *calibration.Report `json:"after,omitempty"`
	PlattID       *uuid.UUID          `json:"platt_id,omitempty"`
	ConformalIDs  []uuid.UUID         `json:"conformal_ids,omitempty"`
	DryRun        bool                `json:"dry_run,omitempty"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	Err           string              `json:"error,omitempty"`
}

// Succeeded reports whether the run completed without a hard error.
// Insufficient data and healthy no-ops both count as success.
func (r *RecalibrationResult) Succeeded() bool {
	return r.State != StateError
}

// Report renders the plain-text block used in CLI output and notifications.
func (r *RecalibrationResult) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stream: %s  state: %s  run: %s\n", r.Stream, r.State, r.RunID)
	fmt.Fprintf(&sb, "window samples: %d probability, %d score\n", r.SampleSize, r.ScoreSamples)

	switch r.State {
	case StateInsufficientData:
		fmt.Fprintf(&sb, "need %d labeled outcomes, have %d\n", r.NeededSamples, r.SampleSize)
	case StateError:
		fmt.Fprintf(&sb, "error: %s\n", r.Err)
	}
	if len(r.DriftReasons) > 0 {
		fmt.Fprintf(&sb, "drift: %s\n", strings.Join(r.DriftReasons, "; "))
	}
	if r.State == StateRecalibrated {
		fmt.Fprintf(&sb, "fitted: a=%.4f b=%.4f\n", r.A, r.B)
		if r.DryRun {
			sb.WriteString("dry run: parameters not persisted\n")
		}
	}
	if r.Before != nil {
		sb.WriteString("-- before --\n")
		sb.WriteString(r.Before.Summary())
	}
	if r.After != nil {
		sb.WriteString("-- after --\n")
		sb.WriteString(r.After.Summary())
	}
	return sb.String()
}

// StatusReport is the drift assessment of one stream's rolling window.
type StatusReport struct {
	Stream        string                       `json:"stream"`
	CheckedAt     time.Time                    `json:"checked_at"`
	SampleSize    int                          `json:"sample_size"`
	ScoreSamples  int                          `json:"score_samples"`
	TotalOutcomes int                          `json:"total_outcomes"`
	Metrics       calibration.Report           `json:"metrics"`
	Coverage      []calibration.CoverageResult `json:"coverage,omitempty"`
	Drifted       bool                         `json:"drifted"`
	Reasons       []string                     `json:"reasons,omitempty"`
}

// Summary renders the plain-text status block for CLI output.
func (sr *StatusReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "stream: %s  checked: %s\n", sr.Stream, sr.CheckedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "outcomes: %d total, %d in window (%d with scores)\n",
		sr.TotalOutcomes, sr.SampleSize, sr.ScoreSamples)
	sb.WriteString(sr.Metrics.Summary())
	for _, cov := range sr.Coverage {
		fmt.Fprintf(&sb, "coverage %.2f: empirical %.3f  gap %+.3f  shortfall p=%.3f\n",
			cov.Nominal, cov.Empirical, cov.Gap, cov.ShortfallPValue)
	}
	if sr.Drifted {
		fmt.Fprintf(&sb, "drift detected: %s\n", strings.Join(sr.Reasons, "; "))
	} else {
		sb.WriteString("no drift detected\n")
	}
	return sb.String()
}

// RecalibrationService runs drift checks and refits calibration parameters
// from the rolling outcome window. Stateless between invocations.
type RecalibrationService struct {
	outcomeRepo repository.OutcomeRepository
	paramRepo   repository.ParameterRepository
	cfg         *config.CalibrationConfig
	log         *logger.CalibrationLogger
	audit       *logger.AuditLogger
}

// NewRecalibrationService creates a new recalibration service.
func NewRecalibrationService(
	outcomeRepo repository.OutcomeRepository,
	paramRepo repository.ParameterRepository,
	cfg *config.CalibrationConfig,
	baseLogger *logrus.Logger,
) *RecalibrationService {
	return &RecalibrationService{
		outcomeRepo: outcomeRepo,
		paramRepo:   paramRepo,
		cfg:         cfg,
		log:         logger.NewCalibrationLogger(baseLogger),
		audit:       logger.NewAuditLogger(baseLogger),
	}
}

// windowData is one loaded rolling window, split into the pair sets the
// fitters consume.
type windowData struct {
	probPairs  []calibration.Pair
	scorePairs []calibration.Pair
}

// CheckStatus evaluates the stream's rolling window without writing anything:
// current metrics, empirical conformal coverage, and whether the drift rule
// fires.
func (s *RecalibrationService) CheckStatus(ctx context.Context, stream string) (*StatusReport, error) {
	win, err := s.loadWindow(ctx, stream)
	if err != nil {
		return nil, err
	}
	status, err := s.assessWindow(ctx, stream, win)
	if err != nil {
		return nil, err
	}
	total, err := s.outcomeRepo.CountByStream(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes for %s: %w", stream, err)
	}
	status.TotalOutcomes = total
	return status, nil
}

// Recalibrate runs the full check-and-refit cycle for one stream. Domain
// outcomes (insufficient data, healthy window) are result states, not errors;
// the returned error is non-nil only when the result state is error. With
// dryRun set the fit is computed and reported but nothing is persisted.
func (s *RecalibrationService) Recalibrate(ctx context.Context, stream string, dryRun bool) (*RecalibrationResult, error) {
	result := &RecalibrationResult{
		RunID:     uuid.New(),
		Stream:    stream,
		StartedAt: time.Now().UTC(),
	}

	win, err := s.loadWindow(ctx, stream)
	if err != nil {
		return s.fail(result, err)
	}
	result.SampleSize = len(win.probPairs)
	result.ScoreSamples = len(win.scorePairs)

	status, err := s.assessWindow(ctx, stream, win)
	if err != nil {
		return s.fail(result, err)
	}

	if status.SampleSize < s.cfg.MinSamples {
		result.State = StateInsufficientData
		result.NeededSamples = s.cfg.MinSamples
		s.log.LogInsufficientData(stream, status.SampleSize, s.cfg.MinSamples)
		return s.finish(result), nil
	}

	if !status.Drifted {
		result.State = StateNoOpHealthy
		before := status.Metrics
		result.Before = &before
		s.log.LogHealthy(stream, status.Metrics.ECE, status.Metrics.Brier)
		return s.finish(result), nil
	}

	result.DriftReasons = status.Reasons
	s.log.LogDriftDetected(stream, status.Metrics.ECE, status.Metrics.Brier, status.Metrics.MCE, status.Reasons)

	// The transform maps raw upstream outputs, so the fit always runs on the
	// raw pairs even though drift was judged on the served ones.
	fitCfg := calibration.DefaultFitConfig()
	if s.cfg.MinSamples > fitCfg.MinSamples {
		fitCfg.MinSamples = s.cfg.MinSamples
	}
	fit, err := calibration.Fit(win.probPairs, fitCfg)
	if err != nil {
		// The sample floor was already checked, so any insufficiency here
		// still maps to the same non-fatal state.
		var insufficient *calibration.InsufficientDataError
		if errors.As(err, &insufficient) {
			result.State = StateInsufficientData
			result.NeededSamples = insufficient.Need
			s.log.LogInsufficientData(stream, insufficient.Got, insufficient.Need)
			return s.finish(result), nil
		}
		return s.fail(result, err)
	}
	before := status.Metrics
	after := calibration.Evaluate(applyPlatt(win.probPairs, fit.A, fit.B), s.cfg.Bins)
	result.A = fit.A
	result.B = fit.B
	result.Before = &before
	result.After = &after

	now := time.Now().UTC()
	validTo := now.Add(s.cfg.Validity())

	metricsJSON, err := json.Marshal(after)
	if err != nil {
		return s.fail(result, fmt.Errorf("failed to encode after-metrics: %w", err))
	}
	platt := &models.PlattParameters{
		ID:             uuid.New(),
		Stream:         stream,
		A:              fit.A,
		B:              fit.B,
		TrainedOnCount: fit.SampleSize,
		MetricsAfter:   metricsJSON,
		ValidFrom:      now,
		ValidTo:        validTo,
		Active:         true,
	}

	// Intervals wrap the calibrated estimate, so conformal thresholds are
	// fitted on scores corrected by the parameters about to go live.
	corrected := correctScores(win.scorePairs, fit.A, fit.B)
	var conformals []*models.ConformalParameters
	for _, level := range s.cfg.CoverageLevels {
		cfit, err := calibration.FitConformal(corrected, level, s.cfg.MinSamples)
		if err != nil {
			if calibration.IsInsufficientData(err) {
				s.log.WithFields(logrus.Fields{
					"stream":         stream,
					"coverage_level": level,
					"score_samples":  len(corrected),
				}).Warn("Too few score pairs for conformal fit, level skipped")
				continue
			}
			return s.fail(result, err)
		}
		s.log.LogConformalFit(stream, level, cfit.Threshold, cfit.SampleSize)
		conformals = append(conformals, &models.ConformalParameters{
			ID:             uuid.New(),
			Stream:         stream,
			CoverageLevel:  level,
			Threshold:      cfit.Threshold,
			TrainedOnCount: cfit.SampleSize,
			ValidFrom:      now,
			ValidTo:        validTo,
			Active:         true,
		})
	}

	if dryRun {
		result.DryRun = true
		result.State = StateRecalibrated
		s.log.WithFields(logrus.Fields{
			"stream": stream,
			"a":      fit.A,
			"b":      fit.B,
		}).Info("Dry run complete, parameters not persisted")
		return s.finish(result), nil
	}

	if err := s.paramRepo.SavePlatt(ctx, platt); err != nil {
		return s.fail(result, err)
	}
	result.PlattID = &platt.ID
	s.audit.LogPlattActivation(stream, platt.ID.String(), platt.A, platt.B, platt.TrainedOnCount, platt.ValidTo, result.RunID.String())
	for _, cp := range conformals {
		if err := s.paramRepo.SaveConformal(ctx, cp); err != nil {
			return s.fail(result, err)
		}
		result.ConformalIDs = append(result.ConformalIDs, cp.ID)
		s.audit.LogConformalActivation(stream, cp.ID.String(), cp.CoverageLevel, cp.Threshold, cp.TrainedOnCount, result.RunID.String())
	}

	result.State = StateRecalibrated
	s.log.LogRecalibrated(stream, fit.A, fit.B, fit.SampleSize, before.ECE, after.ECE, validTo)
	metrics.UpdateLastRecalibration(stream, now)
	metrics.UpdateCalibrationMetrics(stream, after.ECE, after.Brier, after.MCE)
	return s.finish(result), nil
}

// RunAll recalibrates every configured stream concurrently. Streams are
// isolated: one stream's failure shows up in its result and never cancels
// the others. Results keep the configured stream order.
func (s *RecalibrationService) RunAll(ctx context.Context) []*RecalibrationResult {
	results := make([]*RecalibrationResult, len(s.cfg.Streams))
	g := new(errgroup.Group)
	g.SetLimit(maxStreamConcurrency)
	for i, stream := range s.cfg.Streams {
		g.Go(func() error {
			result, _ := s.Recalibrate(ctx, stream, false)
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// GetNextRecalibrationDate returns when the stream should next be refit:
// seven days before the latest parameters expire, or now for a stream that
// was never calibrated. Scheduling hint only.
func (s *RecalibrationService) GetNextRecalibrationDate(ctx context.Context, stream string) (time.Time, error) {
	latest, err := s.paramRepo.GetLatestPlatt(ctx, stream)
	if errors.Is(err, models.ErrNotFound) {
		return time.Now().UTC(), nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load latest platt parameters for %s: %w", stream, err)
	}
	return latest.CreatedAt.AddDate(0, 0, s.cfg.ValidityDays-7), nil
}

// loadWindow pulls the rolling outcome window and splits it into fit inputs.
// Probability pairs take authoritative finish results only; score pairs take
// ground truth from either source, so weak labels feed the conformal side.
func (s *RecalibrationService) loadWindow(ctx context.Context, stream string) (*windowData, error) {
	end := time.Now().UTC()
	start := s.cfg.WindowStart(end)
	outcomes, err := s.outcomeRepo.ListByWindow(ctx, stream, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes for %s: %w", stream, err)
	}

	win := &windowData{}
	for _, o := range outcomes {
		if o.LabelSource == models.LabelSourceAuthoritative && o.ActualFinish != nil {
			win.probPairs = append(win.probPairs, calibration.Pair{
				Predicted: o.PredictedProbability,
				Actual:    o.FinishValue(),
			})
		}
		if o.ActualScore != nil {
			win.scorePairs = append(win.scorePairs, calibration.Pair{
				Predicted: o.PredictedScore,
				Actual:    *o.ActualScore,
			})
		}
	}
	return win, nil
}

// assessWindow evaluates window metrics and applies the drift rule: any
// metric threshold exceeded, or empirical coverage for an active conformal
// level degraded beyond the gap limit. Metrics are computed on predictions
// as served, raw outputs pushed through the active Platt transform, so a
// fresh refit reads healthy on the next check instead of re-firing forever.
func (s *RecalibrationService) assessWindow(ctx context.Context, stream string, win *windowData) (*StatusReport, error) {
	// Same fallback rules as the scorer: a missing or lapsed active row
	// means predictions were served through the identity transform.
	platt, err := s.paramRepo.GetActivePlatt(ctx, stream)
	if errors.Is(err, models.ErrNotFound) {
		platt = models.IdentityPlatt(stream)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load active platt parameters for %s: %w", stream, err)
	} else if !platt.IsValidAt(time.Now().UTC()) {
		platt = models.IdentityPlatt(stream)
	}

	report := calibration.Evaluate(applyPlatt(win.probPairs, platt.A, platt.B), s.cfg.Bins)
	status := &StatusReport{
		Stream:       stream,
		CheckedAt:    time.Now().UTC(),
		SampleSize:   len(win.probPairs),
		ScoreSamples: len(win.scorePairs),
		Metrics:      report,
	}

	var reasons []string
	if report.ECE > s.cfg.ECEThreshold {
		reasons = append(reasons, fmt.Sprintf("ece %.3f > %.3f", report.ECE, s.cfg.ECEThreshold))
	}
	if report.Brier > s.cfg.BrierThreshold {
		reasons = append(reasons, fmt.Sprintf("brier %.3f > %.3f", report.Brier, s.cfg.BrierThreshold))
	}
	if report.MCE > s.cfg.MCEThreshold {
		reasons = append(reasons, fmt.Sprintf("mce %.3f > %.3f", report.MCE, s.cfg.MCEThreshold))
	}

	corrected := correctScores(win.scorePairs, platt.A, platt.B)

	for _, level := range s.cfg.CoverageLevels {
		active, err := s.paramRepo.GetActiveConformal(ctx, stream, level)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load active conformal parameters for %s: %w", stream, err)
		}
		if !active.IsValidAt(time.Now().UTC()) {
			// Lapsed thresholds serve zero-width intervals, so the coverage
			// rule fires and forces a refresh.
			active = models.IdentityConformal(stream, level)
		}
		cov := calibration.ValidateCoverage(corrected, active.Threshold, level)
		status.Coverage = append(status.Coverage, cov)
		metrics.UpdateCoverageGap(stream, level, cov.Gap)
		if cov.DegradedBeyond(s.cfg.CoverageGapLimit) {
			s.log.LogCoverageDegraded(stream, cov.Nominal, cov.Empirical, cov.Gap, cov.ShortfallPValue)
			reasons = append(reasons, fmt.Sprintf("coverage %.2f gap %.3f > %.3f", level, cov.Gap, s.cfg.CoverageGapLimit))
		}
	}

	status.Reasons = reasons
	status.Drifted = len(reasons) > 0
	metrics.UpdateCalibrationMetrics(stream, report.ECE, report.Brier, report.MCE)
	metrics.RecordDriftCheck(stream, status.Drifted)
	return status, nil
}

func (s *RecalibrationService) finish(result *RecalibrationResult) *RecalibrationResult {
	result.FinishedAt = time.Now().UTC()
	metrics.RecordRecalibrationRun(result.Stream, string(result.State), result.FinishedAt.Sub(result.StartedAt).Seconds())
	return result
}

func (s *RecalibrationService) fail(result *RecalibrationResult, err error) (*RecalibrationResult, error) {
	result.State = StateError
	result.Err = err.Error()
	s.log.LogRunFailed(result.Stream, err)
	return s.finish(result), err
}
