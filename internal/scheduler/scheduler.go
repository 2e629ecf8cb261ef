// Package scheduler runs the recurring calibration jobs: the nightly drift
// sweep across streams and the weak labeling batch. All cron expressions are
// evaluated in UTC.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fightpulse/calibration/internal/service"
)

const (
	recalibrationTimeout = 30 * time.Minute
	labelingTimeout      = 10 * time.Minute
)

// RecalibrationRunner runs the drift check and refit across every
// configured stream.
type RecalibrationRunner interface {
	RunAll(ctx context.Context) []*service.RecalibrationResult
}

// LabelingRunner runs one weak labeling batch.
type LabelingRunner interface {
	RunBatch(ctx context.Context, opts service.BatchOptions) (*service.BatchResult, error)
}

// Notifier delivers recalibration outcomes to an external channel. A nil
// notifier disables delivery.
type Notifier interface {
	NotifyRecalibration(ctx context.Context, result *service.RecalibrationResult) error
}

// Scheduler manages the recurring calibration jobs
type Scheduler struct {
	cron            *cron.Cron
	recalibration   RecalibrationRunner
	labeling        LabelingRunner
	notifier        Notifier
	log             *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(recalibration RecalibrationRunner, labeling LabelingRunner, notifier Notifier, baseLogger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		recalibration:   recalibration,
		labeling:        labeling,
		notifier:        notifier,
		log:             baseLogger.WithField("component", "scheduler"),
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleRecalibration schedules the drift sweep
func (s *Scheduler) ScheduleRecalibration(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), recalibrationTimeout)
		defer cancel()
		s.runRecalibrationSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add recalibration job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.log.WithField("cron", cronExpression).Info("Scheduled recalibration sweep")

	return nil
}

// ScheduleLabeling schedules the weak labeling batch
func (s *Scheduler) ScheduleLabeling(cronExpression string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(cronExpression, func() {
		ctx, cancel := context.WithTimeout(context.Background(), labelingTimeout)
		defer cancel()
		s.runLabelingBatch(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to add labeling job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.log.WithField("cron", cronExpression).Info("Scheduled weak labeling batch")

	return nil
}

// runRecalibrationSweep recalibrates every configured stream and notifies
// for runs that changed parameters or failed. Healthy no-ops stay quiet.
func (s *Scheduler) runRecalibrationSweep(ctx context.Context) {
	s.log.Info("Starting scheduled recalibration sweep")
	results := s.recalibration.RunAll(ctx)

	recalibrated, failed := 0, 0
	for _, result := range results {
		switch result.State {
		case service.StateRecalibrated:
			recalibrated++
		case service.StateError:
			failed++
		default:
			continue
		}
		if s.notifier == nil {
			continue
		}
		if err := s.notifier.NotifyRecalibration(ctx, result); err != nil {
			s.log.WithFields(logrus.Fields{
				"stream": result.Stream,
				"error":  err.Error(),
			}).Warn("Failed to deliver recalibration notification")
		}
	}

	s.log.WithFields(logrus.Fields{
		"streams":      len(results),
		"recalibrated": recalibrated,
		"failed":       failed,
	}).Info("Scheduled recalibration sweep completed")
}

func (s *Scheduler) runLabelingBatch(ctx context.Context) {
	s.log.Info("Starting scheduled labeling batch")
	result, err := s.labeling.RunBatch(ctx, service.BatchOptions{})
	if err != nil {
		s.log.WithField("error", err.Error()).Error("Scheduled labeling batch failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"candidates": result.Candidates,
		"labeled":    result.Labeled,
		"skipped":    result.Skipped,
		"failed":     result.Failed,
	}).Info("Scheduled labeling batch completed")
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.log.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop gracefully stops the scheduler, waiting up to the graceful timeout
// for in-flight jobs.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
	case <-time.After(s.gracefulTimeout):
		s.log.Warn("Scheduler stop timed out with jobs still in flight")
	}
	s.isRunning = false
	s.log.Info("Scheduler stopped")

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			nextTime := entry.Next
			if nextRun.IsZero() || nextTime.Before(nextRun) {
				nextRun = nextTime
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}
