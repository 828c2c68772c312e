package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/types"
)

// Config controls the ensemble classifier
type Config struct {
	CacheSize      int
	DetectLanguage bool
}

// Classifier runs the four-strategy ensemble over a prompt
type Classifier struct {
	extractor  *Extractor
	strategies []WeightedStrategy
	cache      *resultCache
	logger     *logrus.Logger
}

// New creates a classifier with the standard strategies. A nil generator
// leaves the AI strategy without a backend, so it never votes.
func New(config Config, generator Generator, logger *logrus.Logger) (*Classifier, error) {
	strategies := []WeightedStrategy{
		{Strategy: NewAIStrategy(generator), Weight: DefaultWeights[StrategyAI]},
		{Strategy: RuleStrategy{}, Weight: DefaultWeights[StrategyRules]},
		{Strategy: FeatureStrategy{}, Weight: DefaultWeights[StrategyFeature]},
		{Strategy: ContextStrategy{}, Weight: DefaultWeights[StrategyContext]},
	}
	return NewWithStrategies(config, strategies, logger)
}

// NewWithStrategies creates a classifier over an explicit strategy set
func NewWithStrategies(config Config, strategies []WeightedStrategy, logger *logrus.Logger) (*Classifier, error) {
	if logger == nil {
		logger = logrus.New()
	}

	cache, err := newResultCache(config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification cache: %w", err)
	}

	var detector *languageDetector
	if config.DetectLanguage {
		detector = newLanguageDetector()
	}

	return &Classifier{
		extractor:  NewExtractor(detector),
		strategies: strategies,
		cache:      cache,
		logger:     logger,
	}, nil
}

// CacheLen reports how many classifications are memoized
func (c *Classifier) CacheLen() int {
	return c.cache.len()
}

// Classify never fails. Strategy errors drop that strategy's vote, and any
// internal fault falls back to a keyword match.
func (c *Classifier) Classify(ctx context.Context, prompt string) (result *types.ClassificationResult) {
	if cached, ok := c.cache.get(prompt); ok {
		cached.Metadata.Cached = true
		return &cached
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", r).Error("Classifier failed, using keyword fallback")
			emergency := emergencyClassify(prompt, fmt.Sprint(r))
			result = &emergency
		}
	}()

	features := c.extractor.Extract(prompt)
	votes, failed, complete := c.collectVotes(ctx, prompt, features)

	decision, ok := Combine(votes)
	if !ok {
		c.logger.WithField("failed", failed).Warn("No strategy produced a vote, using keyword fallback")
		emergency := emergencyClassify(prompt, "no strategy votes")
		emergency.Metadata.Validation.StrategiesFailed = failed
		return &emergency
	}

	calibration := calibrationFactors[decision.Winner]
	res := types.ClassificationResult{
		StoryType:   decision.Winner,
		Confidence:  round2(decision.Confidence * calibration),
		Reasoning:   reasoningFor(decision, votes),
		ContentType: contentType(features),
		Tone:        tone(features),
		Audience:    audience(decision.Winner, features),
		Keywords:    features.Keywords,
		Language:    features.Language,
		Metadata: types.ClassificationMetadata{
			Uncertainty:       decision.Uncertainty,
			AlternativeType:   decision.Alternative,
			FeatureScores:     features.Scores(),
			CalibrationFactor: calibration,
			Validation: types.ValidationMetrics{
				StrategiesUsed:   len(votes),
				StrategiesFailed: failed,
				Agreement:        round2(decision.Agreement),
				WinnerScore:      round2(decision.WinnerScore),
				RunnerUpScore:    round2(decision.RunnerUpScore),
				VoteDistribution: decision.Distribution,
			},
		},
	}
	for _, v := range votes {
		res.Metadata.Votes = append(res.Metadata.Votes, types.StrategyVote{
			Strategy:   v.Strategy,
			StoryType:  v.Label,
			Confidence: round2(v.Confidence),
			Weight:     v.Weight,
			Reasoning:  v.Reasoning,
		})
	}

	// a vote lost to a provider error may succeed next time
	if complete {
		c.cache.add(prompt, res)
	}

	c.logger.WithFields(logrus.Fields{
		"story_type":  res.StoryType,
		"confidence":  res.Confidence,
		"alternative": res.Metadata.AlternativeType,
		"votes":       len(votes),
		"duration":    time.Since(start),
	}).Debug("Prompt classified")

	return &res
}

// collectVotes runs every strategy concurrently and keeps their configured order.
// complete is false when a strategy failed for any reason other than having
// no generator configured.
func (c *Classifier) collectVotes(ctx context.Context, prompt string, f *Features) (votes []WeightedVote, failed []string, complete bool) {
	type outcome struct {
		vote WeightedVote
		err  error
	}

	outcomes := make([]outcome, len(c.strategies))
	var wg sync.WaitGroup
	for i, ws := range c.strategies {
		wg.Add(1)
		go func(i int, ws WeightedStrategy) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i].err = fmt.Errorf("strategy panicked: %v", r)
				}
			}()
			vote, err := ws.Strategy.Classify(ctx, prompt, f)
			outcomes[i] = outcome{
				vote: WeightedVote{Strategy: ws.Strategy.Name(), Weight: ws.Weight, Vote: vote},
				err:  err,
			}
		}(i, ws)
	}
	wg.Wait()

	complete = true
	for i, o := range outcomes {
		name := c.strategies[i].Strategy.Name()
		if o.err == nil && !o.vote.Label.Valid() {
			o.err = fmt.Errorf("invalid story type %q", o.vote.Label)
		}
		if o.err != nil {
			failed = append(failed, name)
			if !errors.Is(o.err, ErrNoGenerator) {
				complete = false
			}
			c.logger.WithFields(logrus.Fields{
				"strategy": name,
				"error":    o.err.Error(),
			}).Debug("Classification strategy skipped")
			continue
		}
		votes = append(votes, o.vote)
	}
	return votes, failed, complete
}

func reasoningFor(d Decision, votes []WeightedVote) string {
	for _, v := range votes {
		if v.Label == d.Winner {
			return fmt.Sprintf("%s (%s, %d of %d strategies agree)", v.Reasoning, v.Strategy, int(d.Agreement*float64(len(votes))+0.5), len(votes))
		}
	}
	return string(d.Winner)
}

func contentType(f *Features) string {
	switch {
	case f.PrimaryIntent == "ask" && f.Questions > 0:
		return "question"
	case f.PrimaryIntent == "celebrate":
		return "announcement"
	case f.PrimaryIntent == "teach":
		return "insight"
	case f.PrimaryIntent == "explain":
		return "explainer"
	case f.FirstPerson > 0.05 && f.PastTense > 0.05:
		return "story"
	default:
		return "post"
	}
}

func tone(f *Features) string {
	switch {
	case f.Celebration >= 0.5:
		return "celebratory"
	case f.Vulnerability >= 0.3 || f.PrimaryIntent == "reflect":
		return "reflective"
	case f.TechnicalDepth >= 0.5:
		return "technical"
	case f.Questions > 0:
		return "conversational"
	default:
		return "professional"
	}
}

func audience(label types.StoryType, f *Features) string {
	if f.TechnicalDepth >= 0.5 {
		return "engineers"
	}
	switch label {
	case types.StoryAchievement:
		return "network"
	case types.StoryJourney, types.StoryLearning:
		return "professionals"
	default:
		return "general"
	}
}
