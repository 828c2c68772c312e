package optimizer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/postgen/internal/types"
)

// Config bounds the shape of an optimized post
type Config struct {
	MaxLength   int `yaml:"max_length"`
	MinLength   int `yaml:"min_length"`
	MaxEmojis   int `yaml:"max_emojis"`
	MinHashtags int `yaml:"min_hashtags"`
	MaxHashtags int `yaml:"max_hashtags"`
}

// DefaultConfig returns the channel limits used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxLength:   3000,
		MinLength:   300,
		MaxEmojis:   4,
		MinHashtags: 3,
		MaxHashtags: 6,
	}
}

// maxQuestionRunes is the room reserved for a closing question
const maxQuestionRunes = 80

// truncationSlack keeps truncated posts clear of the hard limit
const truncationSlack = 50

// Optimizer post-processes generated text. It holds no mutable state.
type Optimizer struct {
	config Config
	logger *logrus.Logger
}

// New creates an optimizer. Zero config values fall back to the defaults.
func New(config Config, logger *logrus.Logger) *Optimizer {
	defaults := DefaultConfig()
	if config.MaxLength <= 0 {
		config.MaxLength = defaults.MaxLength
	}
	if config.MinLength <= 0 {
		config.MinLength = defaults.MinLength
	}
	if config.MaxEmojis <= 0 {
		config.MaxEmojis = defaults.MaxEmojis
	}
	if config.MinHashtags <= 0 {
		config.MinHashtags = defaults.MinHashtags
	}
	if config.MaxHashtags <= 0 {
		config.MaxHashtags = defaults.MaxHashtags
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Optimizer{config: config, logger: logger}
}

// Config returns the effective limits
func (o *Optimizer) Config() Config {
	return o.config
}

// Optimize runs clean, length, formatting, engagement, hashtags and a final
// pass in that order. A nil classification is treated as a general post.
func (o *Optimizer) Optimize(text string, classification *types.ClassificationResult) (string, types.OptimizationTrace) {
	story := types.StoryGeneral
	audience := ""
	var keywords []string
	if classification != nil {
		if classification.StoryType.Valid() {
			story = classification.StoryType
		}
		audience = classification.Audience
		keywords = classification.Keywords
	}

	trace := types.OptimizationTrace{Applied: []string{}}
	apply := func(name, before, after string) string {
		if before != after {
			trace.Applied = append(trace.Applied, name)
		}
		return after
	}

	text = apply("cleaned", text, clean(text))

	var warning string
	text, warning = o.enforceLength(text, &trace)
	if warning != "" {
		trace.Warnings = append(trace.Warnings, warning)
	}

	text = o.format(text, &trace)

	body, tags := splitHashtags(text)
	if withQuestion, added := addEngagement(body, story); added {
		text = joinHashtags(withQuestion, tags)
		trace.Applied = append(trace.Applied, "question-added")
	}

	balanced, applied := o.balanceHashtags(text, story, audience, keywords)
	if applied != "" {
		trace.Applied = append(trace.Applied, applied)
	}
	text = balanced

	text = apply("final-cleanup", text, o.finalPass(text))

	trace.Metrics = o.metrics(text)

	o.logger.WithFields(logrus.Fields{
		"story_type": story,
		"applied":    trace.Applied,
		"characters": trace.Metrics.CharacterCount,
		"overall":    trace.Metrics.Overall,
	}).Debug("Content optimized")

	return text, trace
}

// enforceLength truncates text that would not fit once the closing question
// and missing hashtags are added, and warns on short text
func (o *Optimizer) enforceLength(text string, trace *types.OptimizationTrace) (string, string) {
	n := runeLen(text)
	if n < o.config.MinLength {
		o.logger.WithFields(logrus.Fields{
			"characters": n,
			"minimum":    o.config.MinLength,
		}).Warn("Generated content is below the minimum length")
		return text, fmt.Sprintf("below-minimum-length: %d < %d", n, o.config.MinLength)
	}

	body, tags := splitHashtags(text)

	growth := 0
	if !endsWithQuestion(body) {
		growth += maxQuestionRunes + 2
	}
	if missing := o.config.MinHashtags - countHashtags(text); missing > 0 {
		growth += missing * (maxTagRunes + 1)
		if len(tags) == 0 {
			growth += 2
		}
	}
	if growth == 0 && n <= o.config.MaxLength {
		return text, ""
	}
	if growth > 0 && n+growth+truncationSlack <= o.config.MaxLength {
		return text, ""
	}

	reserve := truncationSlack + growth
	if len(tags) > 0 {
		reserve += runeLen(joinHashtags("", tags)) + 2
	}

	body, closing := splitClosing(body)
	if closing != "" {
		reserve += runeLen(closing) + 2
	}

	body = truncateAtSentence(body, o.config.MaxLength-reserve)
	if closing != "" {
		body += "\n\n" + closing
	}
	truncated := joinHashtags(body, tags)
	o.logger.WithFields(logrus.Fields{
		"from": n,
		"to":   runeLen(truncated),
	}).Info("Truncated over-long content")
	trace.Applied = append(trace.Applied, "length-truncated")
	return truncated, ""
}

// splitClosing separates a final paragraph that ends on a question so
// truncation never removes it
func splitClosing(body string) (string, string) {
	paras := paragraphs(body)
	n := len(paras)
	if n < 2 || !endsWithQuestion(paras[n-1]) {
		return body, ""
	}
	return strings.Join(paras[:n-1], "\n\n"), paras[n-1]
}

// format caps emoji and re-segments poorly structured bodies
func (o *Optimizer) format(text string, trace *types.OptimizationTrace) string {
	if capped, removed := capEmojis(text, o.config.MaxEmojis); removed > 0 {
		text = capped
		trace.Applied = append(trace.Applied, "emojis-capped")
	}

	body, tags := splitHashtags(text)
	paras := paragraphs(body)
	if n := len(paras); n > 1 && isClosingQuestion(paras[n-1]) {
		paras = paras[:n-1]
	}
	if wellStructured(paras) {
		return text
	}
	segmented := segment(body)
	if segmented != body {
		trace.Applied = append(trace.Applied, "paragraphs-resegmented")
	}
	return joinHashtags(segmented, tags)
}

// finalPass repeats whitespace cleanup, ensures each paragraph ends with
// punctuation and enforces the hard limit once more
func (o *Optimizer) finalPass(text string) string {
	text = normalizeWhitespace(stripPlaceholders(text))

	body, tags := splitHashtags(text)
	paras := paragraphs(body)
	for i, p := range paras {
		paras[i] = ensureTerminal(p)
	}
	body = strings.Join(paras, "\n\n")

	if over := runeLen(joinHashtags(body, tags)) - o.config.MaxLength; over > 0 {
		rest, closing := splitClosing(body)
		rest = truncateAtSentence(rest, runeLen(rest)-over-truncationSlack)
		body = rest
		if closing != "" {
			body = strings.TrimSpace(rest + "\n\n" + closing)
		}
	}
	return joinHashtags(body, tags)
}

// ensureTerminal adds a period to paragraphs ending mid-sentence
func ensureTerminal(p string) string {
	fields := strings.Fields(p)
	if len(fields) == 0 || strings.HasPrefix(fields[len(fields)-1], "#") {
		return p
	}
	last, _ := utf8.DecodeLastRuneInString(p)
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		return p + "."
	}
	return p
}
