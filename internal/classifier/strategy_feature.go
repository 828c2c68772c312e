package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/tributary-ai/postgen/internal/types"
)

// Feature vector layout
const (
	fAchievement = iota
	fLearning
	fJourney
	fTechnical
	fGeneral
	fCelebration
	fVulnerability
	fLongSpan
	fTemporal
	fPastTense
	fComplexity
	fQuestion
	fIntentCelebrate
	fIntentTeach
	fIntentReflect
	fIntentExplain
	fIntentShare
	fBias
	featureCount
)

// featureWeights is a hand-tuned linear model, one row per story type
var featureWeights = map[types.StoryType][featureCount]float64{
	types.StoryAchievement: {fAchievement: 2.0, fCelebration: 1.0, fTemporal: 0.3, fIntentCelebrate: 0.8, fBias: -0.5},
	types.StoryLearning:    {fLearning: 2.0, fVulnerability: 0.3, fIntentTeach: 0.8, fIntentReflect: 0.2, fBias: -0.5},
	types.StoryJourney: {
		fJourney: 2.0, fLongSpan: 0.6, fTemporal: 0.2, fPastTense: 1.5, fVulnerability: 0.4,
		fIntentReflect: 0.8, fBias: -0.5,
	},
	types.StoryTechnical: {fTechnical: 2.0, fComplexity: 0.5, fIntentExplain: 0.8, fBias: -0.5},
	types.StoryGeneral:   {fGeneral: 0.8, fQuestion: 0.3, fIntentShare: 0.5, fBias: 0.2},
}

// FeatureStrategy runs the feature vector through a linear model and softmax
type FeatureStrategy struct{}

func (FeatureStrategy) Name() string { return StrategyFeature }

func (FeatureStrategy) Classify(_ context.Context, _ string, f *Features) (Vote, error) {
	x := vectorize(f)

	logits := make(map[types.StoryType]float64, len(types.StoryTypes))
	maxLogit := math.Inf(-1)
	for _, st := range types.StoryTypes {
		w := featureWeights[st]
		sum := 0.0
		for i := 0; i < featureCount; i++ {
			sum += w[i] * x[i]
		}
		logits[st] = sum
		maxLogit = math.Max(maxLogit, sum)
	}

	probs := make(map[types.StoryType]float64, len(logits))
	total := 0.0
	for _, st := range types.StoryTypes {
		probs[st] = math.Exp(logits[st] - maxLogit)
		total += probs[st]
	}
	for _, st := range types.StoryTypes {
		probs[st] /= total
	}

	top := rank(probs)[0]
	return Vote{
		Label:      top.label,
		Confidence: math.Min(0.95, top.score),
		Reasoning:  fmt.Sprintf("linear feature model p=%.2f", top.score),
	}, nil
}

func vectorize(f *Features) [featureCount]float64 {
	var x [featureCount]float64
	x[fAchievement] = math.Min(1, f.AchievementScore/2)
	x[fLearning] = math.Min(1, f.LearningScore/2)
	x[fJourney] = math.Min(1, f.JourneyScore/2)
	x[fTechnical] = f.TechnicalDepth
	x[fGeneral] = math.Min(1, f.GeneralScore/2)
	x[fCelebration] = f.Celebration
	x[fVulnerability] = f.Vulnerability
	if f.LongSpan {
		x[fLongSpan] = 1
	}
	if len(f.Temporal) > 0 {
		x[fTemporal] = 1
	}
	x[fPastTense] = math.Min(1, f.PastTense*5)
	x[fComplexity] = f.Complexity
	x[fQuestion] = math.Min(1, float64(f.Questions))
	x[fIntentCelebrate] = f.Intents["celebrate"]
	x[fIntentTeach] = f.Intents["teach"]
	x[fIntentReflect] = f.Intents["reflect"]
	x[fIntentExplain] = f.Intents["explain"]
	x[fIntentShare] = f.Intents["share"]
	x[fBias] = 1
	return x
}
