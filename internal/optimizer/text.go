package optimizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	hashtagPattern     = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
	hashtagOnlyPattern = regexp.MustCompile(`^#[\p{L}\p{N}_]+$`)
	sentenceEnd        = regexp.MustCompile(`[.!?]+["')\]]*\s+`)
	blankLines         = regexp.MustCompile(`\n{3,}`)
	multiSpace         = regexp.MustCompile(`[ \t]{2,}`)
	paragraphBreak     = regexp.MustCompile(`\n\s*\n`)
)

// runeLen counts characters the way the target channel does
func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// splitHashtags separates trailing lines made only of hashtags from the body
func splitHashtags(text string) (string, []string) {
	lines := strings.Split(strings.TrimRight(text, " \n\t"), "\n")
	end := len(lines)
	var tags []string
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line == "" {
			end--
			continue
		}
		fields := strings.Fields(line)
		all := true
		for _, f := range fields {
			if !hashtagOnlyPattern.MatchString(f) {
				all = false
				break
			}
		}
		if !all {
			break
		}
		tags = append(fields, tags...)
		end--
	}
	return strings.TrimSpace(strings.Join(lines[:end], "\n")), tags
}

// joinHashtags reassembles a body and its hashtag block
func joinHashtags(body string, tags []string) string {
	if len(tags) == 0 {
		return body
	}
	if body == "" {
		return strings.Join(tags, " ")
	}
	return body + "\n\n" + strings.Join(tags, " ")
}

// paragraphs splits on blank lines, dropping empty ones
func paragraphs(body string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(body, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences breaks a line after terminal punctuation followed by whitespace
func splitSentences(line string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(line, -1) {
		if s := strings.TrimSpace(line[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(line[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

// lastSentence returns the final sentence of the body, or ""
func lastSentence(body string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := splitSentences(lines[i]); len(s) > 0 {
			return s[len(s)-1]
		}
	}
	return ""
}

// endsWithQuestion reports whether the body closes on a question
func endsWithQuestion(body string) bool {
	return strings.HasSuffix(strings.TrimRight(lastSentence(body), `"')]`), "?")
}

// truncateAtSentence cuts body to at most limit runes, preferring a sentence
// boundary and falling back to a word boundary with an ellipsis.
func truncateAtSentence(body string, limit int) string {
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	if limit <= 0 {
		return ""
	}
	cut := runes[:limit]

	for i := len(cut) - 1; i >= len(cut)/2; i-- {
		if !isTerminal(cut[i]) {
			continue
		}
		if i == len(cut)-1 || unicode.IsSpace(cut[i+1]) || cut[i+1] == '"' {
			return strings.TrimSpace(string(cut[:i+1]))
		}
	}

	text := string(cut)
	if idx := strings.LastIndexAny(text, " \n"); idx > 0 {
		text = text[:idx]
	}
	return strings.TrimRight(text, " ,;:-\n") + "…"
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// normalizeWhitespace trims lines, collapses runs of spaces and blank lines
func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
