package optimizer

import (
	"github.com/tributary-ai/postgen/internal/types"
)

var closingQuestions = map[types.StoryType][]string{
	types.StoryJourney: {
		"What was a turning point in your own journey?",
		"Where did your path take an unexpected turn?",
	},
	types.StoryTechnical: {
		"How would you have approached this problem?",
		"What tools or patterns have worked for your team here?",
	},
	types.StoryAchievement: {
		"What milestone are you working toward right now?",
		"Who helped you reach your last big win?",
	},
	types.StoryLearning: {
		"What's a lesson that changed how you work?",
		"What would you add to this list?",
	},
	types.StoryGeneral: {
		"What's your take on this?",
		"Have you seen the same thing where you work?",
	},
}

// closingQuestion picks a question for the story type, stable for a given body
func closingQuestion(story types.StoryType, body string) string {
	options, ok := closingQuestions[story]
	if !ok {
		options = closingQuestions[types.StoryGeneral]
	}
	return options[runeLen(body)%len(options)]
}

// addEngagement appends a closing question when the body does not end on one
func addEngagement(body string, story types.StoryType) (string, bool) {
	if endsWithQuestion(body) {
		return body, false
	}
	question := closingQuestion(story, body)
	if body == "" {
		return question, true
	}
	return body + "\n\n" + question, true
}
