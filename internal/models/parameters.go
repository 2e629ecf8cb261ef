package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlattParameters is one fitted version of the logistic recalibration for a
// stream. Rows are append-only and superseded, never mutated; at most one row
// per stream is active at any instant, enforced by the repository's
// deactivate-then-activate transaction.
type PlattParameters struct {
	ID             uuid.UUID       `db:"id" json:"id" validate:"required,uuid4"`
	Stream         string          `db:"stream" json:"stream" validate:"required"`
	A              float64         `db:"a" json:"a"`
	B              float64         `db:"b" json:"b"`
	TrainedOnCount int             `db:"trained_on_count" json:"trained_on_count" validate:"gte=0"`
	MetricsAfter   json.RawMessage `db:"metrics_after" json:"metrics_after,omitempty"`
	ValidFrom      time.Time       `db:"valid_from" json:"valid_from" validate:"required"`
	ValidTo        time.Time       `db:"valid_to" json:"valid_to" validate:"required"`
	Active         bool            `db:"active" json:"active"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// IdentityPlatt returns the no-op transform applied when a stream has no
// fitted parameters: an uncalibrated prediction beats none at all.
func IdentityPlatt(stream string) *PlattParameters {
	return &PlattParameters{Stream: stream, A: 1, B: 0}
}

// IsIdentity reports whether applying these parameters leaves inputs
// unchanged.
func (p *PlattParameters) IsIdentity() bool {
	return p.A == 1 && p.B == 0
}

// IsValidAt reports whether the validity window covers t.
func (p *PlattParameters) IsValidAt(t time.Time) bool {
	return !t.Before(p.ValidFrom) && t.Before(p.ValidTo)
}

// ConformalParameters is one fitted conformal threshold for a
// (stream, coverage level) pair. Same supersession discipline as
// PlattParameters.
type ConformalParameters struct {
	ID             uuid.UUID `db:"id" json:"id" validate:"required,uuid4"`
	Stream         string    `db:"stream" json:"stream" validate:"required"`
	CoverageLevel  float64   `db:"coverage_level" json:"coverage_level" validate:"gt=0,lt=1"`
	Threshold      float64   `db:"threshold" json:"threshold" validate:"gte=0"`
	TrainedOnCount int       `db:"trained_on_count" json:"trained_on_count" validate:"gte=0"`
	ValidFrom      time.Time `db:"valid_from" json:"valid_from" validate:"required"`
	ValidTo        time.Time `db:"valid_to" json:"valid_to" validate:"required"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// IdentityConformal returns the zero-width fallback used when a stream has
// no fitted threshold.
func IdentityConformal(stream string, coverageLevel float64) *ConformalParameters {
	return &ConformalParameters{Stream: stream, CoverageLevel: coverageLevel, Threshold: 0}
}

// IsValidAt reports whether the validity window covers t.
func (c *ConformalParameters) IsValidAt(t time.Time) bool {
	return !t.Before(c.ValidFrom) && t.Before(c.ValidTo)
}
