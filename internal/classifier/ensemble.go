package classifier

import (
	"github.com/tributary-ai/postgen/internal/types"
)

const (
	// alternativeMargin is the widest winner/runner-up gap that still reports an alternative
	alternativeMargin = 0.3
	// uncertainMargin is the gap under which the decision counts as uncertain
	uncertainMargin = 0.2

	highUncertainty = 0.8
	lowUncertainty  = 0.2
)

// WeightedVote is a strategy vote with its ensemble weight attached
type WeightedVote struct {
	Strategy string
	Weight   float64
	Vote
}

// Decision is the combined outcome of a set of weighted votes
type Decision struct {
	Winner        types.StoryType
	WinnerScore   float64
	RunnerUp      types.StoryType
	RunnerUpScore float64
	Confidence    float64
	Alternative   types.StoryType
	Uncertainty   float64
	Distribution  map[types.StoryType]float64
	TotalWeight   float64
	Agreement     float64
}

// Combine sums weight times confidence per label and picks the highest total.
// Ties go to the label listed first in types.StoryTypes. Confidence is the
// winning sum over the weight of the strategies that voted, so a missing
// strategy does not drag it down. It returns false when there are no votes.
func Combine(votes []WeightedVote) (Decision, bool) {
	if len(votes) == 0 {
		return Decision{}, false
	}

	d := Decision{Distribution: make(map[types.StoryType]float64, len(types.StoryTypes))}
	for _, v := range votes {
		d.Distribution[v.Label] += v.Weight * v.Confidence
		d.TotalWeight += v.Weight
	}

	order := rank(d.Distribution)
	d.Winner, d.WinnerScore = order[0].label, order[0].score
	d.RunnerUp, d.RunnerUpScore = order[1].label, order[1].score

	if d.TotalWeight > 0 {
		d.Confidence = clamp01(d.WinnerScore / d.TotalWeight)
	}

	gap := d.WinnerScore - d.RunnerUpScore
	if d.RunnerUpScore > 0 && gap < alternativeMargin {
		d.Alternative = d.RunnerUp
	}
	d.Uncertainty = lowUncertainty
	if gap < uncertainMargin {
		d.Uncertainty = highUncertainty
	}

	agreeing := 0
	for _, v := range votes {
		if v.Label == d.Winner {
			agreeing++
		}
	}
	d.Agreement = float64(agreeing) / float64(len(votes))

	return d, true
}
