package weaklabel

import (
	"github.com/fightpulse/calibration/internal/models"
)

// Aggregate is the combined verdict of all labeling functions for one fight.
type Aggregate struct {
	Label                 models.Label    `json:"label"`
	Confidence            float64         `json:"confidence"`
	Score                 float64         `json:"score"`
	ContributingFunctions []string        `json:"contributing_functions,omitempty"`
	Votes                 map[string]Vote `json:"votes"`
}

// AggregateVotes runs every labeling function and combines the non-abstain
// votes: confidences are summed per label, the label with the largest sum
// wins, and the aggregate confidence is the winning sum over the total
// non-abstain sum, so it reflects agreement rather than raw magnitude. When
// every function abstains the result is ABSTAIN with zero confidence and the
// domain-midpoint score.
func AggregateVotes(stats models.FightStats) Aggregate {
	votes := make(map[string]Vote)
	sums := make(map[models.Label]float64)
	total := 0.0
	var contributing []string

	for _, fn := range Functions() {
		v := fn.Apply(stats)
		votes[fn.Name] = v
		if v.Label == models.LabelAbstain {
			continue
		}
		sums[v.Label] += v.Confidence
		total += v.Confidence
		contributing = append(contributing, fn.Name)
	}

	if total == 0 {
		return Aggregate{
			Label:      models.LabelAbstain,
			Confidence: 0,
			Score:      models.LabelAbstain.Score(),
			Votes:      votes,
		}
	}

	// Fixed label order makes ties deterministic.
	winner := models.LabelHigh
	for _, label := range []models.Label{models.LabelMedium, models.LabelLow} {
		if sums[label] > sums[winner] {
			winner = label
		}
	}

	return Aggregate{
		Label:                 winner,
		Confidence:            sums[winner] / total,
		Score:                 winner.Score(),
		ContributingFunctions: contributing,
		Votes:                 votes,
	}
}
