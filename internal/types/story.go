package types

import "strings"

// StoryType is the narrative label assigned to a prompt by the classifier
type StoryType string

const (
	StoryJourney     StoryType = "journey"
	StoryTechnical   StoryType = "technical"
	StoryAchievement StoryType = "achievement"
	StoryLearning    StoryType = "learning"
	StoryGeneral     StoryType = "general"
)

// StoryTypes lists every story type in tie-break order
var StoryTypes = []StoryType{
	StoryJourney,
	StoryTechnical,
	StoryAchievement,
	StoryLearning,
	StoryGeneral,
}

// ParseStoryType normalizes a label returned by a model or a caller.
// Unknown labels return false.
func ParseStoryType(s string) (StoryType, bool) {
	label := StoryType(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range StoryTypes {
		if st == label {
			return st, true
		}
	}
	return "", false
}

// Valid reports whether the story type is part of the fixed enum
func (s StoryType) Valid() bool {
	_, ok := ParseStoryType(string(s))
	return ok
}
