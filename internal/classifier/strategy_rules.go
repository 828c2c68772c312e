package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/tributary-ai/postgen/internal/types"
)

// RuleStrategy scores each story type from matched signal terms
type RuleStrategy struct{}

func (RuleStrategy) Name() string { return StrategyRules }

func (RuleStrategy) Classify(_ context.Context, _ string, f *Features) (Vote, error) {
	achievement := f.AchievementScore + 0.5*f.Celebration + 0.5*f.Intents["celebrate"]
	if len(f.Temporal) > 0 && f.AchievementScore > 0 {
		achievement += 0.3
	}

	journey := f.JourneyScore + 0.5*f.Intents["reflect"] + 0.2*f.Vulnerability
	if f.LongSpan {
		journey += 0.5
	}

	scores := map[types.StoryType]float64{
		types.StoryAchievement: achievement,
		types.StoryLearning:    f.LearningScore + 0.3*f.Vulnerability + 0.5*f.Intents["teach"],
		types.StoryJourney:     journey,
		types.StoryTechnical:   3*f.TechnicalDepth + 0.5*f.Intents["explain"],
		types.StoryGeneral:     f.GeneralScore + 0.3*f.Intents["share"] + 0.3*f.Intents["ask"],
	}

	order := rank(scores)
	top, second := order[0], order[1]

	if top.score < 0.5 {
		return Vote{
			Label:      types.StoryGeneral,
			Confidence: 0.4,
			Reasoning:  "no strong story signals",
		}, nil
	}

	separation := (top.score - second.score) / top.score
	confidence := math.Min(0.95, 0.35+0.2*math.Min(top.score, 3)) * (0.5 + 0.5*separation)

	return Vote{
		Label:      top.label,
		Confidence: clamp01(confidence),
		Reasoning:  fmt.Sprintf("%s signals: %s", top.label, strings.Join(signalsFor(top.label, f), ", ")),
	}, nil
}

func signalsFor(label types.StoryType, f *Features) []string {
	var signals []string
	switch label {
	case types.StoryAchievement:
		signals = f.AchievementSignals
	case types.StoryLearning:
		signals = f.LearningSignals
	case types.StoryJourney:
		signals = append(append(signals, f.JourneySignals...), f.Temporal...)
	case types.StoryTechnical:
		signals = f.TechnicalTerms
	case types.StoryGeneral:
		signals = f.GeneralSignals
	}
	if len(signals) == 0 {
		return []string{"intent " + f.PrimaryIntent}
	}
	return signals
}
