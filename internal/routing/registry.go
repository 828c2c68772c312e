package routing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tributary-ai/postgen/internal/types"
)

var (
	ErrUnknownModel = errors.New("model is not registered")
	ErrNoImageModel = errors.New("no image-capable model is registered")
)

// Registry is the immutable model catalog plus its selection rules
type Registry struct {
	models        map[string]types.ModelDescriptor
	order         []string
	rules         map[types.StoryType]types.SelectionRule
	lowConfidence types.SelectionRule
	image         types.SelectionRule
	classifier    types.SelectionRule
}

// RuleSet groups the rules a registry is built with
type RuleSet struct {
	ByStoryType   map[types.StoryType]types.SelectionRule
	LowConfidence types.SelectionRule
	Classifier    types.SelectionRule
}

// NewRegistry validates the catalog and rules and builds a registry.
// The image rule is derived: every slot names the image-capable model.
func NewRegistry(models []types.ModelDescriptor, rules RuleSet) (*Registry, error) {
	r := &Registry{
		models: make(map[string]types.ModelDescriptor, len(models)),
		rules:  make(map[types.StoryType]types.SelectionRule, len(rules.ByStoryType)),
	}

	for _, m := range models {
		id := strings.TrimSpace(m.ID)
		if id == "" || m.Provider == "" || m.Model == "" {
			return nil, fmt.Errorf("register model %q: id, provider and model are required", m.ID)
		}
		if _, dup := r.models[id]; dup {
			return nil, fmt.Errorf("register model %q: duplicate id", id)
		}
		if len(m.Capabilities) == 0 {
			m.Capabilities = []types.Capability{types.CapabilityText}
		}
		m.ID = id
		r.models[id] = m
		r.order = append(r.order, id)
	}

	sort.SliceStable(r.order, func(i, j int) bool {
		return r.models[r.order[i]].Priority < r.models[r.order[j]].Priority
	})

	for _, st := range types.StoryTypes {
		rule, ok := rules.ByStoryType[st]
		if !ok {
			return nil, fmt.Errorf("no selection rule for story type %q", st)
		}
		if err := r.checkRule(rule); err != nil {
			return nil, err
		}
		r.rules[st] = rule
	}

	if err := r.checkRule(rules.LowConfidence); err != nil {
		return nil, err
	}
	r.lowConfidence = rules.LowConfidence

	if err := r.checkRule(rules.Classifier); err != nil {
		return nil, err
	}
	r.classifier = rules.Classifier

	imageModel := ""
	for _, id := range r.order {
		if r.models[id].Supports(types.CapabilityImage) {
			imageModel = id
			break
		}
	}
	if imageModel == "" {
		return nil, ErrNoImageModel
	}
	r.image = types.SelectionRule{
		Name:      "image",
		Primary:   imageModel,
		Fallback:  imageModel,
		Tertiary:  imageModel,
		Rationale: "only one model supports image understanding",
	}

	return r, nil
}

func (r *Registry) checkRule(rule types.SelectionRule) error {
	for _, id := range PriorityOrder(rule) {
		if _, ok := r.models[id]; !ok {
			return fmt.Errorf("rule %q: %w: %s", rule.Name, ErrUnknownModel, id)
		}
	}
	if len(PriorityOrder(rule)) == 0 {
		return fmt.Errorf("rule %q names no models", rule.Name)
	}
	return nil
}

// Resolve returns the descriptor for a model identifier
func (r *Registry) Resolve(id string) (types.ModelDescriptor, error) {
	m, ok := r.models[id]
	if !ok {
		return types.ModelDescriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return m, nil
}

// Models returns the catalog ordered by priority
func (r *Registry) Models() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// Rules returns every selection rule, story types first
func (r *Registry) Rules() []types.SelectionRule {
	out := make([]types.SelectionRule, 0, len(r.rules)+3)
	for _, st := range types.StoryTypes {
		out = append(out, r.rules[st])
	}
	return append(out, r.lowConfidence, r.image, r.classifier)
}
