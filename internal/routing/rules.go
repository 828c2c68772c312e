package routing

import (
	"github.com/tributary-ai/postgen/internal/types"
)

// DefaultConfidenceThreshold is the confidence below which the wide rule applies
const DefaultConfidenceThreshold = 0.6

// DefaultCatalog returns the built-in model catalog
func DefaultCatalog() []types.ModelDescriptor {
	text := []types.Capability{types.CapabilityText}
	return []types.ModelDescriptor{
		{
			ID: "gemini-pro", Provider: "gemini", Model: "gemini-2.5-pro",
			Capabilities: text, MaxInputTokens: 1048576, MaxOutputTokens: 2048,
			Temperature: 0.7, TopP: 0.95, TopK: 40, Priority: 1,
			CostWeight: 1.0, LatencyScore: 0.6, QualityScore: 0.95,
		},
		{
			ID: "gemini-flash", Provider: "gemini", Model: "gemini-2.5-flash",
			Capabilities: text, MaxInputTokens: 1048576, MaxOutputTokens: 2048,
			Temperature: 0.8, TopP: 0.95, TopK: 40, Priority: 2,
			CostWeight: 0.3, LatencyScore: 0.9, QualityScore: 0.85,
		},
		{
			ID: "gemini-vision", Provider: "gemini", Model: "gemini-2.5-flash",
			Capabilities:   []types.Capability{types.CapabilityText, types.CapabilityImage},
			MaxInputTokens: 1048576, MaxOutputTokens: 1024,
			Temperature: 0.4, TopP: 0.9, TopK: 32, Priority: 3,
			CostWeight: 0.4, LatencyScore: 0.8, QualityScore: 0.85,
		},
		{
			ID: "gpt-4o-mini", Provider: "openai", Model: "gpt-4o-mini",
			Capabilities: text, MaxInputTokens: 128000, MaxOutputTokens: 2048,
			Temperature: 0.8, TopP: 1.0, Priority: 4,
			CostWeight: 0.2, LatencyScore: 0.85, QualityScore: 0.8,
		},
		{
			ID: "claude-haiku", Provider: "anthropic", Model: "claude-3-5-haiku-latest",
			Capabilities: text, MaxInputTokens: 200000, MaxOutputTokens: 2048,
			Temperature: 0.8, TopP: 0.95, TopK: 40, Priority: 5,
			CostWeight: 0.25, LatencyScore: 0.85, QualityScore: 0.82,
		},
	}
}

// DefaultRules returns the built-in selection rules
func DefaultRules() RuleSet {
	return RuleSet{
		ByStoryType: map[types.StoryType]types.SelectionRule{
			types.StoryJourney: {
				Name: "journey", Primary: "gemini-pro", Fallback: "gemini-flash", Tertiary: "claude-haiku",
				Rationale: "long-form narrative arcs benefit from the strongest model",
			},
			types.StoryTechnical: {
				Name: "technical", Primary: "gemini-pro", Fallback: "gpt-4o-mini", Tertiary: "gemini-flash",
				Rationale: "technical accuracy first, then a second vendor for diversity",
			},
			types.StoryAchievement: {
				Name: "achievement", Primary: "gemini-flash", Fallback: "gemini-pro", Tertiary: "gpt-4o-mini",
				Rationale: "short celebratory posts do well on the fast model",
			},
			types.StoryLearning: {
				Name: "learning", Primary: "gemini-pro", Fallback: "claude-haiku", Tertiary: "gemini-flash",
				Rationale: "reflective lessons need nuance",
			},
			types.StoryGeneral: {
				Name: "general", Primary: "gemini-flash", Fallback: "gpt-4o-mini", Tertiary: "claude-haiku",
				Rationale: "general-purpose and cheap",
			},
		},
		LowConfidence: types.SelectionRule{
			Name: "low-confidence", Primary: "gemini-flash", Fallback: "gemini-pro", Tertiary: "gpt-4o-mini",
			Extra:     []string{"claude-haiku"},
			Rationale: "uncertain classification: most general-purpose model first, widest fallback chain",
		},
		Classifier: types.SelectionRule{
			Name: "classifier", Primary: "gemini-flash", Fallback: "gpt-4o-mini",
			Rationale: "fast structured JSON output",
		},
	}
}

// RulesFor returns the rule for a story type. Unknown types get the general rule.
func (r *Registry) RulesFor(storyType types.StoryType) types.SelectionRule {
	if rule, ok := r.rules[storyType]; ok {
		return rule
	}
	return r.rules[types.StoryGeneral]
}

// LowConfidenceRule returns the wide override rule
func (r *Registry) LowConfidenceRule() types.SelectionRule {
	return r.lowConfidence
}

// ImageRule returns the image rule; every slot names the same model
func (r *Registry) ImageRule() types.SelectionRule {
	return r.image
}

// ClassifierRule returns the chain used by the AI classification strategy
func (r *Registry) ClassifierRule() types.SelectionRule {
	return r.classifier
}

// PriorityOrder flattens a rule into attempt order. Empty slots are dropped;
// duplicate identifiers are kept.
func PriorityOrder(rule types.SelectionRule) []string {
	slots := append([]string{rule.Primary, rule.Fallback, rule.Tertiary}, rule.Extra...)
	order := make([]string, 0, len(slots))
	for _, id := range slots {
		if id != "" {
			order = append(order, id)
		}
	}
	return order
}
