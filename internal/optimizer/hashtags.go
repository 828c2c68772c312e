package optimizer

import (
	"strings"
	"unicode"

	"github.com/tributary-ai/postgen/internal/types"
)

// maxTagRunes is the room reserved per generated hashtag
const maxTagRunes = 24

const baseHashtag = "#ProfessionalGrowth"

var storyHashtags = map[types.StoryType][]string{
	types.StoryJourney:     {"#CareerJourney", "#CareerGrowth"},
	types.StoryTechnical:   {"#Engineering", "#SoftwareDevelopment"},
	types.StoryAchievement: {"#Milestone", "#Teamwork"},
	types.StoryLearning:    {"#LessonsLearned", "#GrowthMindset"},
	types.StoryGeneral:     {"#Insights", "#Leadership"},
}

var audienceHashtags = map[string]string{
	"engineers":     "#Tech",
	"technical":     "#Tech",
	"professionals": "#Careers",
	"network":       "#Community",
	"leaders":       "#Leadership",
	"founders":      "#Startups",
	"general":       "#Community",
}

// countHashtags counts hashtags anywhere in the text
func countHashtags(text string) int {
	return len(hashtagPattern.FindAllString(text, -1))
}

// candidateHashtags lists generated tags in preference order
func candidateHashtags(story types.StoryType, audience string, keywords []string) []string {
	candidates := append([]string{}, storyHashtags[story]...)
	candidates = append(candidates, baseHashtag)
	if tag, ok := audienceHashtags[strings.ToLower(audience)]; ok {
		candidates = append(candidates, tag)
	}
	for _, kw := range keywords {
		if tag := keywordHashtag(kw); tag != "" {
			candidates = append(candidates, tag)
		}
	}
	return append(candidates, storyHashtags[types.StoryGeneral]...)
}

func keywordHashtag(keyword string) string {
	var b strings.Builder
	upper := true
	for _, r := range keyword {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() < 3 {
		return ""
	}
	return "#" + b.String()
}

// balanceHashtags tops up to min and trims to max. Trimmed inline hashtags
// keep their word; trimmed block hashtags are dropped.
func (o *Optimizer) balanceHashtags(text string, story types.StoryType, audience string, keywords []string) (string, string) {
	body, block := splitHashtags(text)
	inline := hashtagPattern.FindAllString(body, -1)
	total := len(inline) + len(block)

	switch {
	case total > o.config.MaxHashtags:
		kept := 0
		body = hashtagPattern.ReplaceAllStringFunc(body, func(tag string) string {
			if kept < o.config.MaxHashtags {
				kept++
				return tag
			}
			return strings.TrimPrefix(tag, "#")
		})
		block = block[:o.config.MaxHashtags-kept]
		return joinHashtags(body, block), "hashtags-trimmed"

	case total < o.config.MinHashtags:
		seen := make(map[string]bool, total)
		for _, tag := range append(append([]string{}, inline...), block...) {
			seen[strings.ToLower(tag)] = true
		}
		for _, tag := range candidateHashtags(story, audience, keywords) {
			if total >= o.config.MinHashtags {
				break
			}
			if seen[strings.ToLower(tag)] {
				continue
			}
			seen[strings.ToLower(tag)] = true
			block = append(block, tag)
			total++
		}
		return joinHashtags(body, block), "hashtags-added"
	}

	return joinHashtags(body, block), ""
}
