package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fightpulse/calibration/internal/config"
	"github.com/fightpulse/calibration/internal/logger"
	"github.com/fightpulse/calibration/internal/metrics"
	"github.com/fightpulse/calibration/internal/models"
	"github.com/fightpulse/calibration/internal/repository"
	"github.com/fightpulse/calibration/internal/weaklabel"
)

// BatchOptions overrides the configured labeling batch behavior for one run.
// Zero values defer to the config.
type BatchOptions struct {
	// Limit caps how many fights the batch considers; 0 means the configured
	// batch limit (which may itself be uncapped).
	Limit int
	// Force re-derives labels for fights that already have a weak label.
	// Authoritative ground truth is never re-derived.
	Force bool
	// MinConfidence overrides the configured confidence floor.
	MinConfidence float64
}

// BatchResult is the structured outcome of one weak labeling batch.
type BatchResult struct {
	RunID          uuid.UUID      `json:"run_id"`
	Candidates     int            `json:"candidates"`
	Labeled        int            `json:"labeled"`
	Skipped        int            `json:"skipped"`
	Failed         int            `json:"failed"`
	Distribution   map[string]int `json:"distribution"`
	MeanConfidence float64        `json:"mean_confidence"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Report renders the plain-text distribution block for CLI output and logs.
func (r *BatchResult) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "run: %s\n", r.RunID)
	fmt.Fprintf(&sb, "candidates: %d  labeled: %d  skipped: %d  failed: %d\n",
		r.Candidates, r.Labeled, r.Skipped, r.Failed)
	if r.Labeled > 0 {
		fmt.Fprintf(&sb, "mean confidence: %.3f\n", r.MeanConfidence)
		sb.WriteString("distribution:")
		for _, label := range []models.Label{models.LabelHigh, models.LabelMedium, models.LabelLow} {
			if n := r.Distribution[string(label)]; n > 0 {
				fmt.Fprintf(&sb, " %s=%d", label, n)
			}
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	return sb.String()
}

// LabelingService derives weak labels for completed fights that lack
// authoritative ground truth.
type LabelingService struct {
	outcomeRepo repository.OutcomeRepository
	weakRepo    repository.WeakLabelRepository
	cfg         *config.LabelingConfig
	log         *logger.LabelingLogger
}

// NewLabelingService creates a new labeling service.
func NewLabelingService(
	outcomeRepo repository.OutcomeRepository,
	weakRepo repository.WeakLabelRepository,
	cfg *config.LabelingConfig,
	baseLogger *logrus.Logger,
) *LabelingService {
	return &LabelingService{
		outcomeRepo: outcomeRepo,
		weakRepo:    weakRepo,
		cfg:         cfg,
		log:         logger.NewLabelingLogger(baseLogger),
	}
}

// RunBatch labels every unlabeled completed fight, skipping aggregates below
// the confidence floor so they stay eligible for a future pass once better
// stats arrive. Fights are processed concurrently; one fight's failure never
// aborts the batch.
func (s *LabelingService) RunBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = s.cfg.BatchLimit
	}
	floor := opts.MinConfidence
	if floor == 0 {
		floor = s.cfg.ConfidenceFloor
	}

	fights, err := s.outcomeRepo.ListUnlabeled(ctx, limit, opts.Force)
	if err != nil {
		return nil, fmt.Errorf("failed to list unlabeled fights: %w", err)
	}
	s.log.LogBatchStarted(len(fights), opts.Force)

	result := &BatchResult{
		RunID:        uuid.New(),
		Candidates:   len(fights),
		Distribution: make(map[string]int),
		StartedAt:    time.Now().UTC(),
	}
	var mu sync.Mutex
	confidenceSum := 0.0

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for _, fight := range fights {
		g.Go(func() error {
			agg := weaklabel.AggregateVotes(*fight)
			if agg.Label == models.LabelAbstain || agg.Confidence < floor {
				s.log.LogBelowFloor(fight.SourceID, agg.Confidence, floor)
				metrics.RecordWeakLabelSkipped(metrics.SkipReasonBelowFloor)
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}

			label, err := buildWeakLabel(fight.SourceID, agg)
			if err == nil {
				err = s.weakRepo.Upsert(ctx, label)
			}
			switch {
			case errors.Is(err, models.ErrAuthoritativeLabel):
				s.log.LogAuthoritativeSkip(fight.SourceID)
				metrics.RecordWeakLabelSkipped(metrics.SkipReasonAuthoritative)
				mu.Lock()
				result.Skipped++
				mu.Unlock()
			case err != nil:
				s.log.WithFields(logrus.Fields{
					"source_id": fight.SourceID,
					"error":     err.Error(),
				}).Warn("Failed to write weak label")
				metrics.RecordWeakLabelSkipped(metrics.SkipReasonFailed)
				mu.Lock()
				result.Failed++
				mu.Unlock()
			default:
				s.log.LogLabelWritten(fight.SourceID, string(agg.Label), agg.Confidence, len(agg.ContributingFunctions))
				metrics.RecordWeakLabelWritten(string(agg.Label))
				mu.Lock()
				result.Labeled++
				result.Distribution[string(agg.Label)]++
				confidenceSum += agg.Confidence
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if result.Labeled > 0 {
		result.MeanConfidence = confidenceSum / float64(result.Labeled)
	}
	result.FinishedAt = time.Now().UTC()
	duration := result.FinishedAt.Sub(result.StartedAt)
	metrics.RecordLabelingBatch(duration.Seconds())
	s.log.LogBatchCompleted(result.Labeled, result.Skipped, result.Failed, result.Distribution, result.MeanConfidence, duration)
	return result, nil
}

// Preview runs the labeling functions for a single fight and returns the
// aggregate with every vote, writing nothing.
func (s *LabelingService) Preview(ctx context.Context, sourceID string) (*weaklabel.Aggregate, error) {
	stats, err := s.outcomeRepo.GetFightStats(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	agg := weaklabel.AggregateVotes(*stats)
	return &agg, nil
}

func buildWeakLabel(sourceID string, agg weaklabel.Aggregate) (*models.WeakLabel, error) {
	votes, err := json.Marshal(agg.Votes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode votes for %s: %w", sourceID, err)
	}
	return &models.WeakLabel{
		ID:                    uuid.New(),
		SourceID:              sourceID,
		Label:                 agg.Label,
		Score:                 agg.Score,
		Confidence:            agg.Confidence,
		ContributingFunctions: agg.ContributingFunctions,
		Votes:                 votes,
	}, nil
}
