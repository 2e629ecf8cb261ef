package models

// Performance bonus types awarded by the promotion.
const (
	BonusFightOfTheNight       = "FOTN"
	BonusPerformanceOfTheNight = "POTN"
	BonusKnockoutOfTheNight    = "KOTN"
	BonusSubmissionOfTheNight  = "SOTN"
)

// FightStats holds the raw per-fight statistics consumed by the labeling
// functions. Pointer fields model data the scraper could not recover; a
// labeling function abstains when a field it needs is nil.
type FightStats struct {
	SourceID           string  `db:"source_id" json:"source_id" validate:"required"`
	Finished           *bool   `db:"finished" json:"finished,omitempty"`
	FinishRound        *int    `db:"finish_round" json:"finish_round,omitempty"`
	DurationSeconds    *int    `db:"duration_seconds" json:"duration_seconds,omitempty"`
	ScheduledRounds    int     `db:"scheduled_rounds" json:"scheduled_rounds"`
	SignificantStrikes *int    `db:"significant_strikes" json:"significant_strikes,omitempty"`
	Knockdowns         *int    `db:"knockdowns" json:"knockdowns,omitempty"`
	SubmissionAttempts *int    `db:"submission_attempts" json:"submission_attempts,omitempty"`
	ControlSeconds     *int    `db:"control_seconds" json:"control_seconds,omitempty"`
	BonusAwarded       *string `db:"bonus_awarded" json:"bonus_awarded,omitempty"`
}

// StrikeRate returns significant strikes landed per minute. The second
// return is false when strikes or duration are missing, or duration is zero.
func (s *FightStats) StrikeRate() (float64, bool) {
	if s.SignificantStrikes == nil || s.DurationSeconds == nil || *s.DurationSeconds <= 0 {
		return 0, false
	}
	return float64(*s.SignificantStrikes) / (float64(*s.DurationSeconds) / 60.0), true
}

// ControlFraction returns the share of elapsed fight time spent in ground
// control. The second return is false when the inputs are missing.
func (s *FightStats) ControlFraction() (float64, bool) {
	if s.ControlSeconds == nil || s.DurationSeconds == nil || *s.DurationSeconds <= 0 {
		return 0, false
	}
	frac := float64(*s.ControlSeconds) / float64(*s.DurationSeconds)
	if frac > 1 {
		frac = 1
	}
	return frac, true
}
