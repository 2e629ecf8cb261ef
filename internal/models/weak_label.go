package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Label is the coarse entertainment tier assigned by weak supervision.
type Label string

const (
	LabelHigh    Label = "HIGH"
	LabelMedium  Label = "MEDIUM"
	LabelLow     Label = "LOW"
	LabelAbstain Label = "ABSTAIN"
)

// Score maps the coarse label onto the 0-100 entertainment scale. ABSTAIN
// maps to the domain midpoint.
func (l Label) Score() float64 {
	switch l {
	case LabelHigh:
		return 85
	case LabelLow:
		return 25
	default:
		return 50
	}
}

// Valid reports whether l is one of the recognized labels.
func (l Label) Valid() bool {
	switch l {
	case LabelHigh, LabelMedium, LabelLow, LabelAbstain:
		return true
	}
	return false
}

// WeakLabel is the aggregated verdict of the labeling functions for one
// fight. It substitutes for missing authoritative ground truth and never
// replaces it.
type WeakLabel struct {
	ID                    uuid.UUID       `db:"id" json:"id" validate:"required,uuid4"`
	SourceID              string          `db:"source_id" json:"source_id" validate:"required"`
	Label                 Label           `db:"label" json:"label" validate:"required"`
	Score                 float64         `db:"score" json:"score" validate:"gte=0,lte=100"`
	Confidence            float64         `db:"confidence" json:"confidence" validate:"gte=0,lte=1"`
	ContributingFunctions []string        `db:"contributing_functions" json:"contributing_functions"`
	Votes                 json.RawMessage `db:"votes" json:"votes,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}

// MeetsFloor reports whether the aggregate confidence clears the batch
// write floor.
func (w *WeakLabel) MeetsFloor(floor float64) bool {
	return w.Confidence >= floor
}
