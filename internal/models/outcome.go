package models

import (
	"time"

	"github.com/google/uuid"
)

// LabelSource identifies where an outcome's ground truth came from.
type LabelSource string

const (
	LabelSourceAuthoritative LabelSource = "authoritative"
	LabelSourceWeak          LabelSource = "weak"
	LabelSourceNone          LabelSource = "none"
)

// PredictionOutcome pairs a raw model prediction with its observed result.
// Rows are written by the ingestion side once ground truth is known and are
// read-only to the calibration engine.
type PredictionOutcome struct {
	ID                   uuid.UUID   `db:"id" json:"id" validate:"required,uuid4"`
	SourceID             string      `db:"source_id" json:"source_id" validate:"required"`
	Stream               string      `db:"stream" json:"stream" validate:"required"`
	PredictedProbability float64     `db:"predicted_probability" json:"predicted_probability" validate:"gte=0,lte=1"`
	PredictedScore       float64     `db:"predicted_score" json:"predicted_score" validate:"gte=0,lte=100"`
	ActualFinish         *bool       `db:"actual_finish" json:"actual_finish,omitempty"`
	ActualScore          *float64    `db:"actual_score" json:"actual_score,omitempty"`
	LabelSource          LabelSource `db:"label_source" json:"label_source"`
	ObservedAt           time.Time   `db:"observed_at" json:"observed_at" validate:"required"`
}

// HasGroundTruth reports whether any actual result is attached.
func (o *PredictionOutcome) HasGroundTruth() bool {
	return o.LabelSource != LabelSourceNone && (o.ActualFinish != nil || o.ActualScore != nil)
}

// FinishValue returns the {0,1} label for the finish outcome. Outcomes
// without a recorded finish count as 0.
func (o *PredictionOutcome) FinishValue() float64 {
	if o.ActualFinish != nil && *o.ActualFinish {
		return 1
	}
	return 0
}
