package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/postgen/internal/types"
)

func newDefaultRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(DefaultCatalog(), DefaultRules())
	require.NoError(t, err)
	return registry
}

func TestPriorityOrder(t *testing.T) {
	tests := []struct {
		name string
		rule types.SelectionRule
		want []string
	}{
		{"full", types.SelectionRule{Primary: "a", Fallback: "b", Tertiary: "c"}, []string{"a", "b", "c"}},
		{"missing middle", types.SelectionRule{Primary: "a", Tertiary: "c"}, []string{"a", "c"}},
		{"duplicates kept", types.SelectionRule{Primary: "a", Fallback: "a", Tertiary: "a"}, []string{"a", "a", "a"}},
		{"extra slots", types.SelectionRule{Primary: "a", Fallback: "b", Extra: []string{"", "d"}}, []string{"a", "b", "d"}},
		{"empty", types.SelectionRule{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityOrder(tt.rule))
		})
	}
}

func TestRegistry_RulesFor(t *testing.T) {
	registry := newDefaultRegistry(t)

	for _, st := range types.StoryTypes {
		rule := registry.RulesFor(st)
		assert.Equal(t, string(st), rule.Name)
		assert.Len(t, PriorityOrder(rule), 3)
	}

	assert.Equal(t, "gemini-flash", registry.RulesFor(types.StoryAchievement).Primary)
	assert.Equal(t, "general", registry.RulesFor(types.StoryType("unknown")).Name)
}

func TestRegistry_ImageRuleRepeatsSingleModel(t *testing.T) {
	registry := newDefaultRegistry(t)

	order := PriorityOrder(registry.ImageRule())
	assert.Equal(t, []string{"gemini-vision", "gemini-vision", "gemini-vision"}, order)

	model, err := registry.Resolve("gemini-vision")
	require.NoError(t, err)
	assert.True(t, model.Supports(types.CapabilityImage))
}

func TestRegistry_Decide(t *testing.T) {
	registry := newDefaultRegistry(t)

	t.Run("confident classification uses story type rule", func(t *testing.T) {
		d := registry.Decide(&types.ClassificationResult{StoryType: types.StoryTechnical, Confidence: 0.8}, DefaultConfidenceThreshold)
		assert.False(t, d.LowConfidence)
		assert.Equal(t, []string{"gemini-pro", "gpt-4o-mini", "gemini-flash"}, d.Order)
		assert.NotEmpty(t, d.Reasoning)
	})

	t.Run("low confidence widens the chain", func(t *testing.T) {
		d := registry.Decide(&types.ClassificationResult{StoryType: types.StoryTechnical, Confidence: 0.59}, DefaultConfidenceThreshold)
		assert.True(t, d.LowConfidence)
		assert.Equal(t, "gemini-flash", d.Order[0])
		assert.Len(t, d.Order, 4)
	})

	t.Run("threshold is exclusive", func(t *testing.T) {
		d := registry.Decide(&types.ClassificationResult{StoryType: types.StoryLearning, Confidence: 0.6}, DefaultConfidenceThreshold)
		assert.False(t, d.LowConfidence)
	})

	t.Run("nil classification", func(t *testing.T) {
		d := registry.Decide(nil, DefaultConfidenceThreshold)
		assert.True(t, d.LowConfidence)
	})

	t.Run("image", func(t *testing.T) {
		d := registry.DecideImage()
		assert.Len(t, d.Order, 3)
	})
}

func TestNewRegistry_Validation(t *testing.T) {
	rules := DefaultRules()

	t.Run("missing fields", func(t *testing.T) {
		_, err := NewRegistry([]types.ModelDescriptor{{ID: "x"}}, rules)
		assert.Error(t, err)
	})

	t.Run("duplicate id", func(t *testing.T) {
		catalog := append(DefaultCatalog(), DefaultCatalog()[0])
		_, err := NewRegistry(catalog, rules)
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("rule names unknown model", func(t *testing.T) {
		broken := DefaultRules()
		broken.ByStoryType[types.StoryGeneral] = types.SelectionRule{Name: "general", Primary: "nope"}
		_, err := NewRegistry(DefaultCatalog(), broken)
		assert.ErrorIs(t, err, ErrUnknownModel)
	})

	t.Run("no image model", func(t *testing.T) {
		var catalog []types.ModelDescriptor
		for _, m := range DefaultCatalog() {
			if !m.Supports(types.CapabilityImage) {
				catalog = append(catalog, m)
			}
		}
		_, err := NewRegistry(catalog, rules)
		assert.ErrorIs(t, err, ErrNoImageModel)
	})
}

func TestRegistry_ModelsAndRules(t *testing.T) {
	registry := newDefaultRegistry(t)

	models := registry.Models()
	require.Len(t, models, 5)
	assert.Equal(t, "gemini-pro", models[0].ID)
	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1].Priority, models[i].Priority)
	}

	assert.Len(t, registry.Rules(), len(types.StoryTypes)+3)

	_, err := registry.Resolve("missing")
	assert.ErrorIs(t, err, ErrUnknownModel)
}
