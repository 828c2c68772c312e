package optimizer

import (
	"regexp"
	"strings"
)

const (
	// shortParagraph and longParagraph bound a mobile-friendly mix
	shortParagraph  = 150
	maxAvgParagraph = 500
	// segmentLimit is the accumulated length that forces a new paragraph
	segmentLimit = 650
	// cueMinimum is the paragraph length a transition cue needs before it breaks
	cueMinimum = 200
)

var transitionCue = regexp.MustCompile(`^(?i:but|however|then|now|today|so here|looking back|fast forward|in the end|here's what|the lesson|the result|eventually|finally|that's when|meanwhile|next|lesson|the truth is|what changed|the turning point|a year later|months later)\b`)

type unit struct {
	text      string
	startLine bool
}

// wellStructured accepts short bodies and bodies with a mix of short and
// long paragraphs whose average stays readable
func wellStructured(paras []string) bool {
	total, short, long := 0, 0, 0
	for _, p := range paras {
		n := runeLen(p)
		total += n
		if n < shortParagraph {
			short++
		} else {
			long++
		}
	}
	if len(paras) == 1 && total <= segmentLimit {
		return true
	}
	if len(paras) < 2 {
		return false
	}
	return total/len(paras) < maxAvgParagraph && short > 0 && long > 0
}

// segment rebuilds paragraphs from sentences, breaking on transition cues or
// when a paragraph grows too long. A closing question stays on its own.
func segment(body string) string {
	units := splitUnits(body)
	if len(units) == 0 {
		return body
	}

	var closing string
	if last := units[len(units)-1]; strings.HasSuffix(last.text, "?") && len(units) > 1 {
		closing = last.text
		units = units[:len(units)-1]
	}

	var paras []string
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if current.Len() > 0 {
			paras = append(paras, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, u := range units {
		n := runeLen(u.text)
		if currentLen > 0 {
			if currentLen+n > segmentLimit || (currentLen >= cueMinimum && transitionCue.MatchString(u.text)) {
				flush()
			}
		}
		if currentLen > 0 {
			if u.startLine {
				current.WriteString("\n")
			} else {
				current.WriteString(" ")
			}
			currentLen++
		}
		current.WriteString(u.text)
		currentLen += n
	}
	flush()

	if closing != "" {
		paras = append(paras, closing)
	}
	return strings.Join(paras, "\n\n")
}

func splitUnits(body string) []unit {
	var units []unit
	for _, line := range strings.Split(body, "\n") {
		for i, s := range splitSentences(line) {
			units = append(units, unit{text: s, startLine: i == 0})
		}
	}
	return units
}

// isClosingQuestion reports whether a paragraph is a single question
func isClosingQuestion(p string) bool {
	units := splitUnits(p)
	return len(units) == 1 && strings.HasSuffix(units[0].text, "?")
}
