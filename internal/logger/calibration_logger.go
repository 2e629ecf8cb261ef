// Package logger provides calibration-specific logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// CalibrationLogger provides dedicated logging for recalibration runs.
type CalibrationLogger struct {
	*logrus.Entry
}

// NewCalibrationLogger creates a new calibration logger.
func NewCalibrationLogger(baseLogger *logrus.Logger) *CalibrationLogger {
	return &CalibrationLogger{
		Entry: baseLogger.WithField("component", "calibration"),
	}
}

// LogDriftDetected logs a drift check that fired.
func (cl *CalibrationLogger) LogDriftDetected(stream string, ece, brier, mce float64, reasons []string) {
	cl.WithFields(logrus.Fields{
		"stream":  stream,
		"ece":     ece,
		"brier":   brier,
		"mce":     mce,
		"reasons": reasons,
	}).Warn("Calibration drift detected")
}

// LogHealthy logs a drift check that found nothing to do.
func (cl *CalibrationLogger) LogHealthy(stream string, ece, brier float64) {
	cl.WithFields(logrus.Fields{
		"stream": stream,
		"ece":    ece,
		"brier":  brier,
	}).Info("Calibration healthy, no refit needed")
}

// LogRecalibrated logs a completed parameter refit.
func (cl *CalibrationLogger) LogRecalibrated(stream string, a, b float64, sampleSize int, eceBefore, eceAfter float64, validTo time.Time) {
	cl.WithFields(logrus.Fields{
		"stream":      stream,
		"a":           a,
		"b":           b,
		"sample_size": sampleSize,
		"ece_before":  eceBefore,
		"ece_after":   eceAfter,
		"valid_to":    validTo.Format(time.RFC3339),
	}).Info("Platt parameters recalibrated")
}

// LogConformalFit logs a fitted conformal threshold.
func (cl *CalibrationLogger) LogConformalFit(stream string, coverageLevel, threshold float64, sampleSize int) {
	cl.WithFields(logrus.Fields{
		"stream":         stream,
		"coverage_level": coverageLevel,
		"threshold":      threshold,
		"sample_size":    sampleSize,
	}).Info("Conformal threshold fitted")
}

// LogCoverageDegraded logs empirical coverage falling short of nominal.
func (cl *CalibrationLogger) LogCoverageDegraded(stream string, nominal, empirical, gap, pValue float64) {
	cl.WithFields(logrus.Fields{
		"stream":    stream,
		"nominal":   nominal,
		"empirical": empirical,
		"gap":       gap,
		"p_value":   pValue,
	}).Warn("Conformal coverage degraded")
}

// LogInsufficientData logs a run skipped for lack of samples.
func (cl *CalibrationLogger) LogInsufficientData(stream string, got, need int) {
	cl.WithFields(logrus.Fields{
		"stream": stream,
		"got":    got,
		"need":   need,
	}).Warn("Insufficient data for recalibration")
}

// LogIdentityFallback logs scoring falling back to identity parameters.
func (cl *CalibrationLogger) LogIdentityFallback(stream, kind string) {
	cl.WithFields(logrus.Fields{
		"stream": stream,
		"kind":   kind,
	}).Warn("No active parameters, using identity fallback")
}

// LogRunFailed logs a run that ended in error.
func (cl *CalibrationLogger) LogRunFailed(stream string, err error) {
	cl.WithFields(logrus.Fields{
		"stream": stream,
		"error":  err.Error(),
	}).Error("Recalibration run failed")
}
