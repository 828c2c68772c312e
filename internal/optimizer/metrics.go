package optimizer

import (
	"math"
	"regexp"
	"strings"

	"github.com/tributary-ai/postgen/internal/types"
)

var (
	metricWord   = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)
	numericClaim = regexp.MustCompile(`\b\d+(\.\d+)?(%|x|k|m|\+)?`)
)

var personalPronouns = map[string]bool{
	"i": true, "me": true, "my": true, "we": true, "our": true, "us": true, "you": true, "your": true,
}

var professionalKeywords = []string{
	"leadership", "strategy", "growth", "team", "career", "innovation", "product",
	"engineering", "customers", "impact", "learning", "data", "management", "culture",
}

var emotionalTriggers = []string{
	"proud", "grateful", "excited", "thrilled", "failed", "struggled", "surprised",
	"honest", "scared", "love", "finally", "never", "lesson", "mistake", "breakthrough",
}

var narrativeMarkers = []string{
	"when i", "i remember", "years ago", "first time", "the day", "story", "back then",
	"looking back", "that's when", "it started",
}

var informalWords = map[string]bool{
	"lol": true, "gonna": true, "wanna": true, "omg": true, "kinda": true, "yeah": true,
	"btw": true, "dude": true, "gotta": true, "lmao": true, "ya": true, "nah": true,
}

// Analyze computes metrics and improvement suggestions without changing the text
func (o *Optimizer) Analyze(text string) types.Analysis {
	m := o.metrics(text)
	return types.Analysis{Metrics: m, Suggestions: o.suggestions(text, m)}
}

func (o *Optimizer) metrics(text string) types.QualityMetrics {
	lower := strings.ToLower(text)
	words := metricWord.FindAllString(lower, -1)
	body, _ := splitHashtags(text)
	paras := paragraphs(body)

	m := types.QualityMetrics{
		CharacterCount: runeLen(text),
		WordCount:      len(words),
		ParagraphCount: len(paras),
		HashtagCount:   countHashtags(text),
		EmojiCount:     countEmojis(text),
	}

	m.Readability = readability(body, words)
	m.EngagementPotential = o.engagement(text, words, m)
	m.MobileReadability = mobileReadability(paras)
	m.Discoverability = o.discoverability(lower, m)
	m.Virality = virality(lower, text)
	m.Professionalism = o.professionalism(words, text, m)

	m.Overall = round1((m.Readability + m.EngagementPotential + m.MobileReadability +
		m.Discoverability + m.Virality + m.Professionalism) / 6)
	return m
}

func readability(body string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	sentences := 0
	for _, line := range strings.Split(body, "\n") {
		sentences += len(splitSentences(line))
	}
	if sentences == 0 {
		sentences = 1
	}

	chars, longWords := 0, 0
	for _, w := range words {
		n := runeLen(w)
		chars += n
		if n > 12 {
			longWords++
		}
	}

	avgSentence := float64(len(words)) / float64(sentences)
	avgWord := float64(chars) / float64(len(words))

	score := 100.0
	if avgSentence > 20 {
		score -= (avgSentence - 20) * 2.5
	}
	if avgWord > 5 {
		score -= (avgWord - 5) * 15
	}
	score -= float64(longWords) / float64(len(words)) * 100
	return clampScore(score)
}

func (o *Optimizer) engagement(text string, words []string, m types.QualityMetrics) float64 {
	score := 40.0
	if strings.Contains(text, "?") {
		score += 20
	}
	if len(words) > 0 {
		pronouns := 0
		for _, w := range words {
			if personalPronouns[w] {
				pronouns++
			}
		}
		if float64(pronouns)/float64(len(words)) > 0.02 {
			score += 15
		}
	}
	if m.EmojiCount > 0 && m.EmojiCount <= o.config.MaxEmojis {
		score += 10
	}
	if m.HashtagCount >= o.config.MinHashtags {
		score += 15
	}
	if m.CharacterCount > 2500 || m.CharacterCount < 200 {
		score -= 20
	}
	return clampScore(score)
}

func mobileReadability(paras []string) float64 {
	if len(paras) == 0 {
		return 0
	}
	total := 0
	longLine := false
	for _, p := range paras {
		total += runeLen(p)
		for _, line := range strings.Split(p, "\n") {
			if runeLen(line) > 300 {
				longLine = true
			}
		}
	}

	score := 0.0
	avg := total / len(paras)
	switch {
	case avg >= 100 && avg <= 150:
		score += 40
	case avg < 250:
		score += 25
	case avg < 500:
		score += 10
	}
	if len(paras) >= 3 {
		score += 30
	}
	if !longLine {
		score += 30
	}
	return clampScore(score)
}

func (o *Optimizer) discoverability(lower string, m types.QualityMetrics) float64 {
	score := 0.0
	switch {
	case m.HashtagCount >= o.config.MinHashtags && m.HashtagCount <= o.config.MaxHashtags:
		score += 40
	case m.HashtagCount > o.config.MaxHashtags:
		score += 10
	case m.HashtagCount > 0:
		score += 20
	}

	found := 0
	for _, kw := range professionalKeywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	score += math.Min(30, float64(found)*8)

	switch {
	case m.CharacterCount >= 800 && m.CharacterCount <= 2000:
		score += 30
	case m.CharacterCount >= o.config.MinLength && m.CharacterCount <= o.config.MaxLength:
		score += 15
	}
	return clampScore(score)
}

func virality(lower, text string) float64 {
	score := 0.0
	triggers := 0
	for _, w := range emotionalTriggers {
		if strings.Contains(lower, w) {
			triggers++
		}
	}
	score += math.Min(40, float64(triggers)*10)

	for _, marker := range narrativeMarkers {
		if strings.Contains(lower, marker) {
			score += 30
			break
		}
	}
	if numericClaim.MatchString(text) {
		score += 20
	}
	if strings.Contains(text, "?") {
		score += 10
	}
	return clampScore(score)
}

func (o *Optimizer) professionalism(words []string, text string, m types.QualityMetrics) float64 {
	if len(words) == 0 {
		return 0
	}
	score := 100.0
	for _, w := range words {
		if informalWords[w] {
			score -= 15
		}
	}
	if strings.Count(text, "!") > 3 {
		score -= 10
	}
	if extra := m.EmojiCount - o.config.MaxEmojis; extra > 0 {
		score -= 5 * float64(extra)
	}
	return clampScore(score)
}

func (o *Optimizer) suggestions(text string, m types.QualityMetrics) []string {
	suggestions := []string{}
	if m.CharacterCount < o.config.MinLength {
		suggestions = append(suggestions, "Expand the post with a concrete example or outcome")
	}
	if m.CharacterCount > o.config.MaxLength {
		suggestions = append(suggestions, "Trim the post below the platform limit")
	}
	if m.Readability < 60 {
		suggestions = append(suggestions, "Shorten long sentences and prefer simpler words")
	}
	if m.MobileReadability < 60 {
		suggestions = append(suggestions, "Break the text into shorter paragraphs for mobile readers")
	}
	body, _ := splitHashtags(text)
	if !endsWithQuestion(body) {
		suggestions = append(suggestions, "End with a question to invite comments")
	}
	if m.HashtagCount < o.config.MinHashtags {
		suggestions = append(suggestions, "Add a few relevant hashtags")
	}
	if m.HashtagCount > o.config.MaxHashtags {
		suggestions = append(suggestions, "Reduce the number of hashtags")
	}
	if m.EmojiCount > o.config.MaxEmojis {
		suggestions = append(suggestions, "Use fewer emoji")
	}
	if m.Professionalism < 70 {
		suggestions = append(suggestions, "Replace informal language with a professional tone")
	}
	return suggestions
}

func clampScore(v float64) float64 {
	return round1(math.Max(0, math.Min(100, v)))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
