// Package metrics provides the centralized Prometheus registry for the
// calibration engine.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	RecalibrationRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fightpulse",
		Name:      "recalibration_runs_total",
		Help:      "Total number of recalibration runs by stream and result state",
	}, []string{"stream", "state"})
	DriftChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fightpulse",
		Name:      "drift_checks_total",
		Help:      "Total number of drift checks by stream and verdict",
	}, []string{"stream", "verdict"})
	ParamCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fightpulse",
		Name:      "param_cache_hits_total",
		Help:      "Total number of scorer parameter cache hits",
	})
	ParamCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fightpulse",
		Name:      "param_cache_misses_total",
		Help:      "Total number of scorer parameter cache misses",
	})
)

// Gauge metrics
var (
	CalibrationECE = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fightpulse",
		Name:      "calibration_ece",
		Help:      "Expected calibration error over the rolling window",
	}, []string{"stream"})
	CalibrationBrier = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fightpulse",
		Name:      "calibration_brier",
		Help:      "Brier score over the rolling window",
	}, []string{"stream"})
	CalibrationMCE = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fightpulse",
		Name:      "calibration_mce",
		Help:      "Maximum calibration error over the rolling window",
	}, []string{"stream"})
	ConformalCoverageGap = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fightpulse",
		Name:      "conformal_coverage_gap",
		Help:      "Nominal minus empirical conformal coverage on the rolling window",
	}, []string{"stream", "coverage_level"})
	LastRecalibrationTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fightpulse",
		Name:      "last_recalibration_timestamp_seconds",
		Help:      "Unix timestamp of the last successful recalibration",
	}, []string{"stream"})
)

// Histogram metrics
var (
	RecalibrationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fightpulse",
		Name:      "recalibration_duration_seconds",
		Help:      "Duration of recalibration runs in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(RecalibrationRunsTotal)
		registry.MustRegister(DriftChecksTotal)
		registry.MustRegister(ParamCacheHitsTotal)
		registry.MustRegister(ParamCacheMissesTotal)

		// Register gauge metrics
		registry.MustRegister(CalibrationECE)
		registry.MustRegister(CalibrationBrier)
		registry.MustRegister(CalibrationMCE)
		registry.MustRegister(ConformalCoverageGap)
		registry.MustRegister(LastRecalibrationTimestamp)

		// Register histogram metrics
		registry.MustRegister(RecalibrationDuration)

		// Register labeling metrics
		registry.MustRegister(WeakLabelsWrittenTotal)
		registry.MustRegister(WeakLabelsSkippedTotal)
		registry.MustRegister(LabelingBatchDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordRecalibrationRun records a completed recalibration run.
func RecordRecalibrationRun(stream, state string, durationSeconds float64) {
	RecalibrationRunsTotal.WithLabelValues(stream, state).Inc()
	RecalibrationDuration.Observe(durationSeconds)
}

// RecordDriftCheck records a drift check verdict.
func RecordDriftCheck(stream string, drifted bool) {
	verdict := "healthy"
	if drifted {
		verdict = "drifted"
	}
	DriftChecksTotal.WithLabelValues(stream, verdict).Inc()
}

// UpdateCalibrationMetrics updates the window metric gauges for a stream.
func UpdateCalibrationMetrics(stream string, ece, brier, mce float64) {
	CalibrationECE.WithLabelValues(stream).Set(ece)
	CalibrationBrier.WithLabelValues(stream).Set(brier)
	CalibrationMCE.WithLabelValues(stream).Set(mce)
}

// UpdateCoverageGap updates the conformal coverage gap gauge.
func UpdateCoverageGap(stream string, coverageLevel, gap float64) {
	level := strconv.FormatFloat(coverageLevel, 'f', 2, 64)
	ConformalCoverageGap.WithLabelValues(stream, level).Set(gap)
}

// UpdateLastRecalibration records when a stream last refit its parameters.
func UpdateLastRecalibration(stream string, at time.Time) {
	LastRecalibrationTimestamp.WithLabelValues(stream).Set(float64(at.Unix()))
}

// RecordParamCacheHit records a scorer parameter cache hit.
func RecordParamCacheHit() {
	ParamCacheHitsTotal.Inc()
}

// RecordParamCacheMiss records a scorer parameter cache miss.
func RecordParamCacheMiss() {
	ParamCacheMissesTotal.Inc()
}
