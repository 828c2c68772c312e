package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/tributary-ai/postgen/internal/types"
)

// nonEnglishPenalty dampens confidence when the lexical tables do not apply
const nonEnglishPenalty = 0.7

// ContextStrategy reads intent, time span and emotional framing rather than topic words
type ContextStrategy struct{}

func (ContextStrategy) Name() string { return StrategyContext }

func (ContextStrategy) Classify(_ context.Context, _ string, f *Features) (Vote, error) {
	achievement := f.Intents["celebrate"] + 0.5*f.Celebration
	if f.AchievementScore > 0 {
		achievement += 0.3
	}
	learning := f.Intents["teach"] + 0.3*f.Vulnerability
	if f.LearningScore > 0 {
		learning += 0.3
	}
	journey := f.Intents["reflect"]
	if f.LongSpan {
		journey += 0.5
	}
	if f.PastTense > 0.1 {
		journey += 0.3
	}

	scores := map[types.StoryType]float64{
		types.StoryAchievement: achievement,
		types.StoryLearning:    learning,
		types.StoryJourney:     journey,
		types.StoryTechnical:   f.Intents["explain"] + 0.8*f.TechnicalDepth,
		types.StoryGeneral:     0.6*f.Intents["share"] + 0.5*f.Intents["ask"] + 0.2,
	}

	order := rank(scores)
	top := order[0]

	sum := 0.0
	for _, r := range order {
		sum += r.score
	}

	vote := Vote{Label: types.StoryGeneral, Confidence: 0.35, Reasoning: "no clear framing"}
	if top.score >= 0.4 {
		vote = Vote{
			Label:      top.label,
			Confidence: math.Min(0.95, 0.4+0.55*top.score/sum),
			Reasoning:  fmt.Sprintf("framing suggests %s (intent %q)", top.label, f.PrimaryIntent),
		}
	}

	if !isEnglish(f.Language) {
		vote.Confidence *= nonEnglishPenalty
		vote.Reasoning += fmt.Sprintf("; %s prompt", f.Language)
	}
	return vote, nil
}
