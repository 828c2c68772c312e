package classifier

import (
	"strings"

	"github.com/tributary-ai/postgen/internal/types"
)

// EmergencyConfidence is reported for keyword fallback results
const EmergencyConfidence = 0.6

var emergencyKeywords = []struct {
	label types.StoryType
	words []string
}{
	{types.StoryTechnical, []string{"built", "code", "api", "deploy"}},
	{types.StoryAchievement, []string{"launched", "shipped", "won", "promoted"}},
	{types.StoryLearning, []string{"learned", "lesson"}},
	{types.StoryJourney, []string{"journey", "years"}},
}

// emergencyClassify is the last-resort keyword match used when the ensemble cannot run
func emergencyClassify(prompt, reason string) types.ClassificationResult {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		words[strings.Trim(w, ".,!?;:\"'()")] = true
	}

	label := types.StoryGeneral
	for _, group := range emergencyKeywords {
		if hasAny(words, group.words) {
			label = group.label
			break
		}
	}

	return types.ClassificationResult{
		StoryType:   label,
		Confidence:  EmergencyConfidence,
		Reasoning:   "keyword fallback: " + reason,
		ContentType: "post",
		Tone:        "professional",
		Audience:    "general",
		Metadata: types.ClassificationMetadata{
			Uncertainty: highUncertainty,
			Emergency:   true,
		},
	}
}

func hasAny(words map[string]bool, candidates []string) bool {
	for _, c := range candidates {
		if words[c] {
			return true
		}
	}
	return false
}
