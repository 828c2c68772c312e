package routing

import (
	"fmt"
	"time"

	"github.com/tributary-ai/postgen/internal/types"
)

// RoutingDecision records which rule was chosen for a request and why
type RoutingDecision struct {
	// The rule that produced the attempt order
	Rule types.SelectionRule `json:"rule"`

	// Model identifiers in attempt order, duplicates included
	Order []string `json:"order"`

	// Human-readable reasoning for the decision
	Reasoning []string `json:"reasoning"`

	// Set when the low-confidence override replaced the story-type rule
	LowConfidence bool `json:"low_confidence"`

	Timestamp time.Time `json:"timestamp"`
}

// Decide picks the selection rule for a classification. Below threshold the
// wide low-confidence rule replaces the story-type rule.
func (r *Registry) Decide(c *types.ClassificationResult, threshold float64) *RoutingDecision {
	d := &RoutingDecision{Timestamp: time.Now()}

	storyType := types.StoryGeneral
	confidence := 0.0
	if c != nil {
		storyType = c.StoryType
		confidence = c.Confidence
	}

	if confidence < threshold {
		d.Rule = r.lowConfidence
		d.LowConfidence = true
		d.Reasoning = append(d.Reasoning,
			fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, threshold),
			d.Rule.Rationale,
		)
	} else {
		d.Rule = r.RulesFor(storyType)
		d.Reasoning = append(d.Reasoning,
			fmt.Sprintf("story type %s with confidence %.2f", storyType, confidence),
			d.Rule.Rationale,
		)
	}

	d.Order = PriorityOrder(d.Rule)
	return d
}

// DecideImage returns the decision for image analysis
func (r *Registry) DecideImage() *RoutingDecision {
	return &RoutingDecision{
		Rule:      r.image,
		Order:     PriorityOrder(r.image),
		Reasoning: []string{r.image.Rationale},
		Timestamp: time.Now(),
	}
}
