package classifier

import (
	"context"
	"sort"

	"github.com/tributary-ai/postgen/internal/types"
)

// Strategy names
const (
	StrategyAI      = "ai"
	StrategyRules   = "rules"
	StrategyFeature = "feature"
	StrategyContext = "context"
)

// DefaultWeights are the fixed relative weights of the four strategies
var DefaultWeights = map[string]float64{
	StrategyAI:      0.40,
	StrategyRules:   0.25,
	StrategyFeature: 0.20,
	StrategyContext: 0.15,
}

// Vote is one strategy's candidate classification
type Vote struct {
	Label      types.StoryType
	Confidence float64
	Reasoning  string
}

// Strategy is one independent way of classifying a prompt
type Strategy interface {
	Name() string
	Classify(ctx context.Context, prompt string, f *Features) (Vote, error)
}

// WeightedStrategy pairs a strategy with its ensemble weight
type WeightedStrategy struct {
	Strategy Strategy
	Weight   float64
}

// ranked is a label with a score, used by the lexical strategies
type ranked struct {
	label types.StoryType
	score float64
}

// rank orders scores descending; ties keep the StoryTypes order
func rank(scores map[types.StoryType]float64) []ranked {
	out := make([]ranked, 0, len(types.StoryTypes))
	for _, st := range types.StoryTypes {
		out = append(out, ranked{label: st, score: scores[st]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})
	return out
}
