package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Weak labeling metrics
var (
	WeakLabelsWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fightpulse",
		Name:      "weak_labels_written_total",
		Help:      "Total number of weak labels written by aggregated label",
	}, []string{"label"})
	WeakLabelsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fightpulse",
		Name:      "weak_labels_skipped_total",
		Help:      "Total number of labeling candidates skipped by reason",
	}, []string{"reason"})
	LabelingBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fightpulse",
		Name:      "labeling_batch_duration_seconds",
		Help:      "Duration of weak labeling batches in seconds",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// Skip reasons for RecordWeakLabelSkipped.
const (
	SkipReasonBelowFloor    = "below_floor"
	SkipReasonAuthoritative = "authoritative"
	SkipReasonFailed        = "failed"
)

// RecordWeakLabelWritten records a persisted weak label.
func RecordWeakLabelWritten(label string) {
	WeakLabelsWrittenTotal.WithLabelValues(label).Inc()
}

// RecordWeakLabelSkipped records a skipped labeling candidate.
func RecordWeakLabelSkipped(reason string) {
	WeakLabelsSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordLabelingBatch records a completed labeling batch.
func RecordLabelingBatch(durationSeconds float64) {
	LabelingBatchDuration.Observe(durationSeconds)
}
