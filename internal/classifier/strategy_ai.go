package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tributary-ai/postgen/internal/types"
)

// ErrNoGenerator is returned when the AI strategy has nothing to call
var ErrNoGenerator = errors.New("no generator configured")

// Generator completes a prompt with a language model
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AIStrategy asks a language model for a structured classification
type AIStrategy struct {
	generator Generator
}

// NewAIStrategy creates an AI strategy backed by the given generator
func NewAIStrategy(generator Generator) *AIStrategy {
	return &AIStrategy{generator: generator}
}

func (s *AIStrategy) Name() string { return StrategyAI }

func (s *AIStrategy) Classify(ctx context.Context, prompt string, _ *Features) (Vote, error) {
	if s.generator == nil {
		return Vote{}, ErrNoGenerator
	}

	raw, err := s.generator.Complete(ctx, buildClassificationPrompt(prompt))
	if err != nil {
		return Vote{}, fmt.Errorf("ai classification failed: %w", err)
	}
	return parseAIVote(raw)
}

const classificationTemplate = `Classify the story a professional wants to tell in a social media post.

Story types:
- journey: career path, personal growth over time, transitions
- technical: engineering work, tools, architecture, how something was built
- achievement: launches, wins, promotions, milestones
- learning: lessons, mistakes, insights, advice
- general: opinions, news, anything else

Respond with JSON only:
{"storyType": "<type>", "confidence": <number between 0 and 1>, "reasoning": "<one sentence>"}

Post idea:
"""
%s
"""`

func buildClassificationPrompt(prompt string) string {
	return fmt.Sprintf(classificationTemplate, strings.TrimSpace(prompt))
}

type aiResponse struct {
	StoryType  string  `json:"storyType"`
	StoryType2 string  `json:"story_type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// parseAIVote extracts the first JSON object from a model reply, tolerating code fences and chatter
func parseAIVote(raw string) (Vote, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Vote{}, fmt.Errorf("no JSON object in model reply")
	}

	var resp aiResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &resp); err != nil {
		return Vote{}, fmt.Errorf("failed to decode model reply: %w", err)
	}

	name := resp.StoryType
	if name == "" {
		name = resp.StoryType2
	}
	label, ok := types.ParseStoryType(name)
	if !ok {
		return Vote{}, fmt.Errorf("unknown story type %q", name)
	}

	reasoning := strings.TrimSpace(resp.Reasoning)
	if reasoning == "" {
		reasoning = "model classification"
	}
	return Vote{
		Label:      label,
		Confidence: clamp01(resp.Confidence),
		Reasoning:  reasoning,
	}, nil
}
