// Package logger provides audit logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// AuditLogger provides a dedicated audit trail for parameter changes. Every
// activation that affects how predictions are served gets one entry here,
// separate from the operational run logs.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogPlattActivation records a Platt transform going live for a stream.
func (al *AuditLogger) LogPlattActivation(stream, parameterID string, a, b float64, trainedOn int, validTo time.Time, runID string) {
	al.WithFields(logrus.Fields{
		"stream":       stream,
		"parameter_id": parameterID,
		"a":            a,
		"b":            b,
		"trained_on":   trainedOn,
		"valid_to":     validTo.Format(time.RFC3339),
		"run_id":       runID,
	}).Info("Platt parameters activated")
}

// LogConformalActivation records a conformal threshold going live for a
// stream and coverage level.
func (al *AuditLogger) LogConformalActivation(stream, parameterID string, coverageLevel, threshold float64, trainedOn int, runID string) {
	al.WithFields(logrus.Fields{
		"stream":         stream,
		"parameter_id":   parameterID,
		"coverage_level": coverageLevel,
		"threshold":      threshold,
		"trained_on":     trainedOn,
		"run_id":         runID,
	}).Info("Conformal parameters activated")
}
