// Package logger provides weak-label batch logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LabelingLogger provides dedicated logging for weak label generation.
type LabelingLogger struct {
	*logrus.Entry
}

// NewLabelingLogger creates a new labeling logger.
func NewLabelingLogger(baseLogger *logrus.Logger) *LabelingLogger {
	return &LabelingLogger{
		Entry: baseLogger.WithField("component", "labeling"),
	}
}

// LogBatchStarted logs the start of a labeling batch.
func (ll *LabelingLogger) LogBatchStarted(candidates int, force bool) {
	ll.WithFields(logrus.Fields{
		"candidates": candidates,
		"force":      force,
	}).Info("Weak label batch started")
}

// LogBatchCompleted logs the outcome of a labeling batch.
func (ll *LabelingLogger) LogBatchCompleted(labeled, skipped, failed int, distribution map[string]int, meanConfidence float64, duration time.Duration) {
	ll.WithFields(logrus.Fields{
		"labeled":         labeled,
		"skipped":         skipped,
		"failed":          failed,
		"distribution":    distribution,
		"mean_confidence": meanConfidence,
		"duration_ms":     duration.Milliseconds(),
	}).Info("Weak label batch completed")
}

// LogLabelWritten logs one persisted weak label.
func (ll *LabelingLogger) LogLabelWritten(sourceID, label string, confidence float64, contributors int) {
	ll.WithFields(logrus.Fields{
		"source_id":    sourceID,
		"label":        label,
		"confidence":   confidence,
		"contributors": contributors,
	}).Debug("Weak label written")
}

// LogBelowFloor logs a fight skipped for low aggregate confidence.
func (ll *LabelingLogger) LogBelowFloor(sourceID string, confidence, floor float64) {
	ll.WithFields(logrus.Fields{
		"source_id":  sourceID,
		"confidence": confidence,
		"floor":      floor,
	}).Debug("Weak label below confidence floor, left for a future pass")
}

// LogAuthoritativeSkip logs a fight that gained authoritative truth mid-batch.
func (ll *LabelingLogger) LogAuthoritativeSkip(sourceID string) {
	ll.WithField("source_id", sourceID).Debug("Fight already has authoritative truth, weak label not written")
}
