package weaklabel

import (
	"github.com/fightpulse/calibration/internal/models"
)

// Heuristic thresholds, expressed per-minute where the underlying counts
// scale with fight duration so three- and five-round fights are comparable.
const (
	earlyFinishSeconds     = 60
	quickFinishSeconds     = 180
	quickFinishStrikeFloor = 30

	strikeRateFrenzied = 10.0
	strikeRateHigh     = 6.0
	strikeRateModerate = 4.0
	strikeRateLow      = 2.0

	knockdownsDominant = 3
	knockdownsStrong   = 2

	controlGrindFraction = 0.6

	subAttemptsRelentless = 4
	subAttemptsActive     = 2
)

// Vote is one labeling function's verdict for a fight.
type Vote struct {
	Label      models.Label `json:"label"`
	Confidence float64      `json:"confidence"`
}

func abstain() Vote {
	return Vote{Label: models.LabelAbstain, Confidence: 0}
}

// Function is a pure labeling heuristic over raw fight statistics. The set
// is closed and reviewed; order matters only for reporting.
type Function struct {
	Name  string
	Apply func(models.FightStats) Vote
}

// Functions returns the fixed set of labeling functions in evaluation order.
func Functions() []Function {
	return []Function{
		{Name: "fast_finish", Apply: fastFinish},
		{Name: "bonus_award", Apply: bonusAward},
		{Name: "strike_rate", Apply: strikeRate},
		{Name: "knockdowns", Apply: knockdowns},
		{Name: "decision_grind", Apply: decisionGrind},
		{Name: "submission_attempts", Apply: submissionAttempts},
	}
}

// fastFinish rewards fights that end early. A first-round finish inside a
// minute is the strongest signal; a finish inside three minutes still counts
// when the strike volume shows a firefight rather than an early injury.
func fastFinish(s models.FightStats) Vote {
	if s.Finished == nil || !*s.Finished || s.FinishRound == nil || s.DurationSeconds == nil {
		return abstain()
	}
	if *s.FinishRound == 1 && *s.DurationSeconds < earlyFinishSeconds {
		return Vote{Label: models.LabelHigh, Confidence: 0.9}
	}
	if *s.DurationSeconds < quickFinishSeconds && s.SignificantStrikes != nil && *s.SignificantStrikes >= quickFinishStrikeFloor {
		return Vote{Label: models.LabelHigh, Confidence: 0.8}
	}
	if *s.FinishRound == 1 {
		return Vote{Label: models.LabelHigh, Confidence: 0.6}
	}
	return abstain()
}

// bonusAward trusts the promotion's own judgment. No bonus is weak evidence
// either way, so absence abstains rather than votes low.
func bonusAward(s models.FightStats) Vote {
	if s.BonusAwarded == nil {
		return abstain()
	}
	switch *s.BonusAwarded {
	case models.BonusFightOfTheNight:
		return Vote{Label: models.LabelHigh, Confidence: 0.95}
	case models.BonusPerformanceOfTheNight, models.BonusKnockoutOfTheNight, models.BonusSubmissionOfTheNight:
		return Vote{Label: models.LabelHigh, Confidence: 0.8}
	}
	return abstain()
}

// strikeRate grades output normalized by elapsed time.
func strikeRate(s models.FightStats) Vote {
	rate, ok := s.StrikeRate()
	if !ok {
		return abstain()
	}
	switch {
	case rate >= strikeRateFrenzied:
		return Vote{Label: models.LabelHigh, Confidence: 0.85}
	case rate >= strikeRateHigh:
		return Vote{Label: models.LabelHigh, Confidence: 0.6}
	case rate >= strikeRateModerate:
		return Vote{Label: models.LabelMedium, Confidence: 0.6}
	case rate < strikeRateLow:
		return Vote{Label: models.LabelLow, Confidence: 0.7}
	default:
		return Vote{Label: models.LabelMedium, Confidence: 0.4}
	}
}

// knockdowns counts dropped opponents. Zero knockdowns says nothing by
// itself, so it abstains.
func knockdowns(s models.FightStats) Vote {
	if s.Knockdowns == nil {
		return abstain()
	}
	switch {
	case *s.Knockdowns >= knockdownsDominant:
		return Vote{Label: models.LabelHigh, Confidence: 0.9}
	case *s.Knockdowns == knockdownsStrong:
		return Vote{Label: models.LabelHigh, Confidence: 0.7}
	case *s.Knockdowns == 1:
		return Vote{Label: models.LabelMedium, Confidence: 0.55}
	}
	return abstain()
}

// decisionGrind flags full-distance fights with little output or long
// stretches of ground control. Both signals together are stronger than
// either alone.
func decisionGrind(s models.FightStats) Vote {
	if s.Finished == nil || *s.Finished {
		return abstain()
	}
	rate, rateOK := s.StrikeRate()
	control, controlOK := s.ControlFraction()

	lowVolume := rateOK && rate < strikeRateLow
	grinding := controlOK && control > controlGrindFraction
	switch {
	case lowVolume && grinding:
		return Vote{Label: models.LabelLow, Confidence: 0.8}
	case lowVolume:
		return Vote{Label: models.LabelLow, Confidence: 0.6}
	case grinding:
		return Vote{Label: models.LabelLow, Confidence: 0.5}
	}
	return abstain()
}

// submissionAttempts rewards scrambles even when nothing lands.
func submissionAttempts(s models.FightStats) Vote {
	if s.SubmissionAttempts == nil {
		return abstain()
	}
	switch {
	case *s.SubmissionAttempts >= subAttemptsRelentless:
		return Vote{Label: models.LabelHigh, Confidence: 0.7}
	case *s.SubmissionAttempts >= subAttemptsActive:
		return Vote{Label: models.LabelMedium, Confidence: 0.55}
	}
	return abstain()
}
